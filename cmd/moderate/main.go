// Command moderate fait tourner les fonctions en local et permet de relancer
// le pipeline ou la galerie à la main, sur GCS ou sur un dossier local.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	function "gitlab.com/Boursyt/cours_saas_project/moderate_script"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/config"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/logging"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/moderation"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/pipeline"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "moderate",
		Short:         "Image moderation pipeline: classify, blur, thumbnail, gallery",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			logging.Init(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	root.AddCommand(newServeCmd(&cfg), newProcessCmd(&cfg), newCatalogCmd(&cfg))
	return root
}

func newServeCmd(cfg **config.Config) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve ModerateImage and RebuildCatalog with the Functions Framework",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target != "" {
				os.Setenv("FUNCTION_TARGET", target)
			}
			log.Info().Str("port", (*cfg).Port).Str("target", target).Msg("Functions Framework listening")
			return funcframework.Start((*cfg).Port)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "serve only this function (ModerateImage or RebuildCatalog)")
	return cmd
}

func newProcessCmd(cfg **config.Config) *cobra.Command {
	var (
		bucket, object, dir string
		flagged             bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the moderation pipeline once for an uploaded object",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := log.Logger.WithContext(cmd.Context())

			store, classifier, cleanup, err := collaborators(ctx, dir, flagged)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := function.NewPipeline(*cfg, store, classifier).Handle(ctx, pipeline.UploadEvent{Bucket: bucket, Name: object})
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: skipped\n", object)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (thumbnail %s, flagged=%t, catalog entries=%d)\n",
				res.Source, res.Canonical, res.Thumbnail, res.Flagged, res.CatalogEntries)
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket name")
	cmd.Flags().StringVar(&object, "object", "", "object path inside the bucket")
	cmd.Flags().StringVar(&dir, "dir", "", "use a local directory as storage (one sub-directory per bucket) instead of GCS and Vision")
	cmd.Flags().BoolVar(&flagged, "flagged", false, "with --dir, treat the image as flagged")
	cmd.MarkFlagRequired("bucket")
	cmd.MarkFlagRequired("object")
	return cmd
}

func newCatalogCmd(cfg **config.Config) *cobra.Command {
	var bucket, dir string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Rebuild the HTML gallery of a bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var store storage.Store
			if dir != "" {
				fsStore, err := storage.NewFilesystemStore(dir)
				if err != nil {
					return err
				}
				store = fsStore
			} else {
				gcsStore, err := storage.NewGCSStore(ctx)
				if err != nil {
					return err
				}
				defer gcsStore.Close()
				store = gcsStore
			}

			page, err := function.NewCatalogBuilder(*cfg).Build(ctx, bucket, store.Bucket(bucket))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries\n", page.Object, len(page.Entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket name")
	cmd.Flags().StringVar(&dir, "dir", "", "use a local directory as storage instead of GCS")
	cmd.MarkFlagRequired("bucket")
	return cmd
}

// collaborators retourne le stockage et le classifieur : local (dossier + verdict fixe) si dir est renseigné,
// sinon Cloud Storage et Cloud Vision.
func collaborators(ctx context.Context, dir string, flagged bool) (storage.Store, moderation.Classifier, func(), error) {
	if dir != "" {
		store, err := storage.NewFilesystemStore(dir)
		if err != nil {
			return nil, nil, nil, err
		}
		verdict := moderation.Verdict{Adult: moderation.VeryUnlikely, Violence: moderation.VeryUnlikely}
		if flagged {
			verdict.Adult = moderation.VeryLikely
		}
		return store, moderation.StaticClassifier{Verdict: verdict}, func() {}, nil
	}

	store, err := storage.NewGCSStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	classifier, err := moderation.NewVisionClassifier(ctx)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return store, classifier, func() {
		classifier.Close()
		store.Close()
	}, nil
}
