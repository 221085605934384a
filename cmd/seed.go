package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/benchradar/benchradar/internal/model"
)

// seedFile is the YAML fixture format consumed by `benchradar seed`.
type seedFile struct {
	Profiles []model.Profile `yaml:"profiles"`
	Benches  []seedBench     `yaml:"benches"`
}

type seedBench struct {
	Latitude    float64           `yaml:"latitude"`
	Longitude   float64           `yaml:"longitude"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Status      model.BenchStatus `yaml:"status"`
	CreatedBy   string            `yaml:"created_by"`
	PhotoURLs   []string          `yaml:"photo_urls"`
}

var seedPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load fixture benches and profiles from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(seedPath)
		if err != nil {
			return eris.Wrapf(err, "seed: read %s", seedPath)
		}
		var fixtures seedFile
		if err := yaml.Unmarshal(data, &fixtures); err != nil {
			return eris.Wrap(err, "seed: parse yaml")
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		for _, p := range fixtures.Profiles {
			if err := st.UpsertProfile(ctx, p); err != nil {
				return err
			}
		}

		for _, sb := range fixtures.Benches {
			status := sb.Status
			if status == "" {
				status = model.BenchStatusPending
			}
			if !status.Valid() {
				return eris.Errorf("seed: unknown status %q", sb.Status)
			}

			bench := model.Bench{
				Latitude:    sb.Latitude,
				Longitude:   sb.Longitude,
				Title:       sb.Title,
				Description: sb.Description,
				Status:      status,
				CreatedBy:   sb.CreatedBy,
			}
			if len(sb.PhotoURLs) > 0 {
				bench.MainPhotoURL = sb.PhotoURLs[0]
			}

			created, err := st.CreateBench(ctx, bench)
			if err != nil {
				return err
			}
			if len(sb.PhotoURLs) > 0 {
				photos := make([]model.BenchPhoto, 0, len(sb.PhotoURLs))
				for i, u := range sb.PhotoURLs {
					photos = append(photos, model.BenchPhoto{BenchID: created.ID, URL: u, IsMain: i == 0})
				}
				if err := st.InsertPhotos(ctx, created.ID, photos); err != nil {
					return err
				}
			}
		}

		zap.L().Info("seed complete",
			zap.Int("profiles", len(fixtures.Profiles)),
			zap.Int("benches", len(fixtures.Benches)),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPath, "file", "seed.yaml", "fixture file path")
	rootCmd.AddCommand(seedCmd)
}
