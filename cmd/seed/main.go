package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/joho/godotenv"

	"github.com/leadboard/apps/api/internal/auth"
	"github.com/leadboard/apps/api/internal/db"
	"github.com/leadboard/apps/api/internal/leads"
	"github.com/leadboard/apps/api/internal/store"
)

var seedServices = []string{"Web Design", "SEO", "Paid Ads", "Social Media"}

func main() {
	_ = godotenv.Load()

	leadCount := flag.Int("leads", 25, "number of fake leads to create")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	email := envOrDefault("SEED_ADMIN_EMAIL", "admin@local.leadboard")
	password := envOrDefault("SEED_ADMIN_PASSWORD", "Admin12345!")
	fullName := envOrDefault("SEED_ADMIN_NAME", "Local Admin")
	orgSlug := envOrDefault("SEED_ORG_SLUG", "local-dev")
	orgName := envOrDefault("SEED_ORG_NAME", "Local Dev Agency")
	tableName := envOrDefault("SEED_TABLE_NAME", "Prospects")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	creds, err := auth.NewSessionCredentials()
	if err != nil {
		log.Fatalf("generate session credentials: %v", err)
	}

	gofakeit.Seed(0)

	var table leads.Table
	err = store.New(pool).WithTx(ctx, func(tx *store.Store) error {
		orgID, err := tx.CreateOrg(ctx, orgSlug, orgName)
		if err != nil {
			return err
		}
		userID, err := tx.CreateUser(ctx, email, fullName, passwordHash)
		if err != nil {
			return err
		}
		if err := tx.AddOrgMember(ctx, orgID, userID, "admin"); err != nil {
			return err
		}
		if _, err := tx.CreateSession(ctx, orgID, userID, creds.TokenHash, creds.CSRFToken, time.Now().Add(30*24*time.Hour)); err != nil {
			return err
		}

		table, err = tx.CreateTable(ctx, orgID, tableName, leads.TableDefaults{
			DefaultStage:      leads.StageNew,
			DefaultSourceType: leads.SourceScraping,
		})
		if err != nil {
			return err
		}
		for _, name := range seedServices {
			if _, err := tx.CreateService(ctx, table.ID, name); err != nil {
				return err
			}
		}

		for i := 0; i < *leadCount; i++ {
			if _, err := tx.CreateLead(ctx, table, store.NewLead{Candidate: fakeLead(table), CreatedBy: &userID}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	fmt.Printf("Seed completed. org=%s admin=%s password=%s table=%s leads=%d\n", orgSlug, email, password, table.ID, *leadCount)
	fmt.Printf("Cookie: lb_sess=%s\n", creds.Token)
	fmt.Printf("X-CSRF-Token: %s\n", creds.CSRFToken)
}

func fakeLead(table leads.Table) leads.CandidateLead {
	website := "https://www." + gofakeit.DomainName()
	lead := leads.CandidateLead{
		BusinessName: gofakeit.Company(),
		Stage:        table.DefaultStage,
		SourceType:   table.DefaultSourceType,
		WebsiteURL:   leads.NormalizeWebsiteURL(website),
		Domain:       leads.ExtractDomain(website),
	}
	if gofakeit.Bool() {
		contact := gofakeit.Email()
		lead.Contact = &contact
	}
	if gofakeit.Number(1, 4) == 1 {
		notes := gofakeit.Sentence(8)
		lead.Notes = &notes
	}
	if lead.Contact != nil && gofakeit.Bool() {
		followup := gofakeit.DateRange(time.Now(), time.Now().AddDate(0, 1, 0)).Format(time.DateOnly)
		lead.Stage = leads.StageContacted
		lead.NextFollowupAt = &followup
	}
	return lead
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
