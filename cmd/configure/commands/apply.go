package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/config"
	"github.com/propeld/propeld/internal/database"
	"github.com/propeld/propeld/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// applyFile is the YAML document accepted by the apply command. Every section
// is optional; only present sections are written.
type applyFile struct {
	Cors *struct {
		Origins          []string `yaml:"origins"`
		AllowCredentials bool     `yaml:"allow_credentials"`
		MaxAge           int      `yaml:"max_age"`
	} `yaml:"cors"`
	Ratelimit *struct {
		Rate string `yaml:"rate"`
	} `yaml:"ratelimit"`
	OIDC []struct {
		Provider     string `yaml:"provider"`
		Issuer       string `yaml:"issuer"`
		Domain       string `yaml:"domain"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURI  string `yaml:"redirect_uri"`
	} `yaml:"oidc"`
}

// NewApplyCmd creates the apply command, which writes a whole configuration
// file to the database in one pass. Useful for provisioning fresh
// environments without a flag-by-flag session.
func NewApplyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a YAML configuration file",
		Long:  "Apply CORS, rate limit and OIDC provider configuration from a YAML file in one pass.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read config file: %w", err)
			}
			var doc applyFile
			if err := yaml.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("parse config file: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer func() { _ = db.Close() }()

			ctx := context.Background()

			if doc.Cors != nil {
				if len(doc.Cors.Origins) == 0 {
					return fmt.Errorf("cors.origins must not be empty")
				}
				repo := database.NewCorsConfigRepository(db)
				c := &models.CorsConfig{
					AllowedOrigins:   strings.Join(doc.Cors.Origins, ","),
					AllowCredentials: doc.Cors.AllowCredentials,
					MaxAge:           doc.Cors.MaxAge,
				}
				if c.MaxAge == 0 {
					c.MaxAge = 86400
				}
				if err := repo.Set(ctx, c); err != nil {
					return fmt.Errorf("set cors config: %w", err)
				}
				fmt.Println("Applied CORS configuration.")
			}

			if doc.Ratelimit != nil {
				rate := strings.TrimSpace(doc.Ratelimit.Rate)
				if rate == "" {
					return fmt.Errorf("ratelimit.rate must not be empty")
				}
				repo := database.NewRatelimitConfigRepository(db)
				if err := repo.Set(ctx, &models.RatelimitConfig{Rate: rate}); err != nil {
					return fmt.Errorf("set ratelimit config: %w", err)
				}
				fmt.Println("Applied rate limit configuration.")
			}

			oidcRepo := database.NewOIDCConfigRepository(db)
			for _, p := range doc.OIDC {
				if p.Provider == "" || p.Issuer == "" || p.ClientID == "" || p.RedirectURI == "" {
					return fmt.Errorf("oidc entries require provider, issuer, client_id and redirect_uri")
				}
				jwksURL := p.Issuer + "/.well-known/jwks.json"

				existing, err := oidcRepo.GetByProvider(ctx, p.Provider)
				if err == nil && existing != nil {
					existing.Issuer = p.Issuer
					existing.ClientID = p.ClientID
					existing.RedirectURI = p.RedirectURI
					existing.JWKSUrl = &jwksURL
					existing.Domain = nil
					if p.Domain != "" {
						domain := p.Domain
						existing.Domain = &domain
					}
					existing.ClientSecret = nil
					if p.ClientSecret != "" {
						secret := p.ClientSecret
						existing.ClientSecret = &secret
					}
					if err := oidcRepo.Update(ctx, existing); err != nil {
						return fmt.Errorf("update OIDC config for %s: %w", p.Provider, err)
					}
					fmt.Printf("Updated OIDC provider: %s\n", p.Provider)
					continue
				}

				c := &models.OIDCConfig{
					ID:          uuid.New(),
					Provider:    p.Provider,
					Issuer:      p.Issuer,
					ClientID:    p.ClientID,
					RedirectURI: p.RedirectURI,
					JWKSUrl:     &jwksURL,
				}
				if p.Domain != "" {
					domain := p.Domain
					c.Domain = &domain
				}
				if p.ClientSecret != "" {
					secret := p.ClientSecret
					c.ClientSecret = &secret
				}
				if err := oidcRepo.Create(ctx, c); err != nil {
					return fmt.Errorf("create OIDC config for %s: %w", p.Provider, err)
				}
				fmt.Printf("Created OIDC provider: %s\n", p.Provider)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the YAML configuration file (required)")
	return cmd
}
