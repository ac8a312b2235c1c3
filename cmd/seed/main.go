package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"flowport/backend/internal/config"
	"flowport/backend/internal/logging"
	"flowport/backend/internal/repository"
	"flowport/backend/pkg/models"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	// Load config
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to DB
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	store := repository.NewPostgresWorkflowStore(pool)

	key := "system.email-processing"
	if existing, err := store.FindDefinitionByKey(ctx, key); err == nil {
		logger.Info("Skipping existing workflow", "key", key, "id", existing.ID)
		return
	} else if err != repository.ErrNotFound {
		log.Fatalf("Failed to look up workflow %s: %v", key, err)
	}

	def := &models.WorkflowDefinition{
		ID:          uuid.New().String(),
		Key:         key,
		Name:        "Email Processing",
		Description: "Classifies inbound email and routes it to a handler queue.",
		Draft: map[string]interface{}{
			"nodes": []interface{}{
				map[string]interface{}{"type": "trigger.imap", "action": "email.fetch"},
				map[string]interface{}{"type": "transform.classify", "schemaRef": "email/v1"},
			},
		},
		Settings: models.OperationalSettings{
			IsVisible:   true,
			Concurrency: 4,
			Retention:   models.RetentionPolicy{Mode: models.RetentionDays, Days: 30},
		},
	}

	versions := []*models.WorkflowDefinitionVersion{
		{
			ID:           uuid.New().String(),
			DefinitionID: def.ID,
			Version:      1,
			Name:         "Email Processing",
			Content: map[string]interface{}{
				"nodes": []interface{}{
					map[string]interface{}{"type": "trigger.imap", "action": "email.fetch"},
				},
			},
		},
		{
			ID:           uuid.New().String(),
			DefinitionID: def.ID,
			Version:      2,
			Name:         "Email Processing",
			Content: map[string]interface{}{
				"nodes": []interface{}{
					map[string]interface{}{"type": "trigger.imap", "action": "email.fetch"},
					map[string]interface{}{"type": "transform.classify", "schemaRef": "email/v1"},
				},
			},
		},
	}

	err = store.ImportTx(ctx, func(tx repository.ImportTx) error {
		if err := tx.CreateDefinition(ctx, def); err != nil {
			return err
		}
		for _, v := range versions {
			if err := tx.CreateVersion(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to seed workflow %s: %v", key, err)
	}

	logger.Info("Seeded workflow", "key", key, "id", def.ID, "versions", len(versions))
	logger.Info("Seeding complete!")
}
