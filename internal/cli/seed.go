package cli

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"gopkg.in/yaml.v3"

	"quiz-contest-service/internal/config"
	"quiz-contest-service/internal/domain"
	pgstore "quiz-contest-service/internal/infra/postgres"
)

// seedFile is the YAML shape operators feed to the seed command.
type seedFile struct {
	Contests []seedContest `yaml:"contests"`
}

type seedContest struct {
	ID                    string         `yaml:"id"`
	Slug                  string         `yaml:"slug"`
	Name                  string         `yaml:"name"`
	Description           string         `yaml:"description"`
	Active                bool           `yaml:"active"`
	AllowMultipleAttempts bool           `yaml:"allowMultipleAttempts"`
	TimeLimitMinutes      int            `yaml:"timeLimitMinutes"`
	Questions             []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	ID      string       `yaml:"id"`
	Title   string       `yaml:"title"`
	Content string       `yaml:"content"`
	Type    string       `yaml:"type"`
	Answers []seedAnswer `yaml:"answers"`
}

type seedAnswer struct {
	ID      string `yaml:"id"`
	Content string `yaml:"content"`
	Score   int    `yaml:"score"`
}

// NewSeedCmd loads contests from a YAML file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load contests from a YAML file into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}

			contests, err := loadSeedFile(file)
			if err != nil {
				return err
			}

			sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
			db := bun.NewDB(sqldb, pgdialect.New())
			defer db.Close()

			for _, contest := range contests {
				if err := pgstore.UpsertContest(cmd.Context(), db, contest); err != nil {
					return fmt.Errorf("seed contest %s: %w", contest.Slug, err)
				}
				log.Printf("seeded contest %s (%d questions)", contest.Slug, len(contest.Questions))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/contests.yaml", "path to the contests YAML file")
	return cmd
}

func loadSeedFile(path string) ([]domain.Contest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed seedFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	contests := make([]domain.Contest, 0, len(parsed.Contests))
	for _, c := range parsed.Contests {
		contest := domain.Contest{
			ID:                    c.ID,
			Slug:                  c.Slug,
			Name:                  c.Name,
			Description:           c.Description,
			Active:                c.Active,
			AllowMultipleAttempts: c.AllowMultipleAttempts,
			TimeLimitMinutes:      c.TimeLimitMinutes,
		}
		if contest.ID == "" || contest.Slug == "" {
			return nil, fmt.Errorf("contest %q: id and slug are required", c.Name)
		}
		for qi, q := range c.Questions {
			qtype := domain.QuestionType(q.Type)
			if qtype != domain.SingleChoice && qtype != domain.MultipleChoices {
				return nil, fmt.Errorf("contest %s question %s: unknown type %q", c.Slug, q.ID, q.Type)
			}
			question := domain.Question{
				ID:       q.ID,
				Title:    q.Title,
				Content:  q.Content,
				Type:     qtype,
				Position: qi + 1,
			}
			for ai, a := range q.Answers {
				if a.Score < 0 {
					return nil, fmt.Errorf("contest %s answer %s: score must be >= 0", c.Slug, a.ID)
				}
				question.Answers = append(question.Answers, domain.Answer{
					ID:       a.ID,
					Content:  a.Content,
					Score:    a.Score,
					Position: ai + 1,
				})
			}
			contest.Questions = append(contest.Questions, question)
		}
		contests = append(contests, contest)
	}
	return contests, nil
}
