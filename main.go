package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lunacloud/stackctl/config"
	"github.com/lunacloud/stackctl/internal/cloud"
	"github.com/lunacloud/stackctl/internal/cmk"
	"github.com/lunacloud/stackctl/internal/models"
	"github.com/lunacloud/stackctl/internal/naming"
	"github.com/lunacloud/stackctl/internal/provision"
	"github.com/lunacloud/stackctl/internal/recovery"
	"github.com/lunacloud/stackctl/internal/teardown"
	"github.com/lunacloud/stackctl/internal/telemetry"
	"github.com/lunacloud/stackctl/internal/validate"
	"github.com/lunacloud/stackctl/internal/verify"
	"github.com/lunacloud/stackctl/pkg/userdata"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

var (
	repoName      string
	uniqueID      string
	env           string
	settingsPath  string
	verbose       bool
	metricsListen string

	configPath    string
	publicKeyPath string
	outputPath    string
	recoverMode   bool

	zone     string
	allZones bool

	reportPath string
)

var root = &cobra.Command{
	Use:   "stackctl",
	Short: "Reconcile cloud deployments onto their desired state",
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Converge the deployment's resources onto the desired state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		app, err := newApp()
		if err != nil {
			return err
		}

		state, err := loadDesiredState(app.settings)
		if err != nil {
			return err
		}

		if state.Domain != "" {
			app.log.Debug().Str("domain", state.Domain).Msg("domain configured")
		}

		publicKey, err := loadPublicKey(app.log)
		if err != nil {
			return err
		}

		webUserdata, err := userdata.Load(app.settings.Userdata.Web)
		if err != nil {
			return fmt.Errorf("failed to load web userdata: %w", err)
		}

		dbUserdata, err := userdata.Load(app.settings.Userdata.DB)
		if err != nil {
			return fmt.Errorf("failed to load db userdata: %w", err)
		}

		var recoverer provision.Recoverer
		if recoverMode {
			volumes := []string{naming.BlobVolume(app.deployment)}
			if state.DBEnabled {
				volumes = append(volumes, naming.DBVolume(app.deployment))
			}

			recoverer = recovery.New(recovery.Config{
				Cloud:      app.cloud,
				Deployment: app.deployment,
				Volumes:    volumes,
				Logger:     app.log,
			})
		}

		provisioner := provision.New(provision.Config{
			Cloud:       app.cloud,
			Recovery:    recoverer,
			Deployment:  app.deployment,
			State:       state,
			Catalog:     app.settings.Catalog,
			Snapshots:   app.settings.Snapshots,
			VolumeTag:   app.settings.Tags.Volume,
			PublicKey:   publicKey,
			WebUserdata: webUserdata,
			DBUserdata:  dbUserdata,
			Logger:      app.log,
		})

		started := time.Now()

		descriptor, err := provisioner.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to provision deployment: %w", err)
		}

		app.metrics.RunDuration.Set(time.Since(started).Seconds())
		app.log.Info().Dur("duration", time.Since(started)).Msg("deployment provisioned")

		return writeDescriptor(descriptor)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a desired state document",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		settings, err := config.Load(settingsPath)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}

		if _, err := loadDesiredState(settings); err != nil {
			return err
		}

		return nil
	},
}

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Destroy the deployment's resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		if (zone != "") == allZones {
			return errors.New("exactly one of --zone and --all-zones is required")
		}

		app, err := newApp()
		if err != nil {
			return err
		}

		sequencer := teardown.New(teardown.Config{
			Cloud:         app.cloud,
			Deployment:    app.deployment,
			VolumeTag:     app.settings.Tags.Volume,
			DetachSettle:  app.settings.Teardown.DetachSettle,
			NetworkSettle: app.settings.Teardown.NetworkSettle,
			Logger:        app.log,
			Metrics:       app.metrics,
		})

		if _, err := sequencer.Run(cmd.Context(), zone); err != nil {
			return fmt.Errorf("failed to tear down deployment: %w", err)
		}

		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a provisioned deployment against the desired state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		app, err := newApp()
		if err != nil {
			return err
		}

		state, err := loadDesiredState(app.settings)
		if err != nil {
			return err
		}

		verifier := verify.New(verify.Config{
			Cloud:      app.cloud,
			Deployment: app.deployment,
			State:      state,
			VolumeTag:  app.settings.Tags.Volume,
			Logger:     app.log,
		})

		report, err := verifier.Run(cmd.Context())

		if reportPath != "" {
			if writeErr := report.Write(reportPath); writeErr != nil {
				return writeErr
			}
		}

		return err
	},
}

// app bundles what every cloud-touching command needs.
type app struct {
	deployment string
	settings   config.Config
	log        zerolog.Logger
	metrics    *telemetry.Metrics
	cloud      *cloud.Client
}

func newApp() (*app, error) {
	settings, err := config.Load(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	deployment := naming.Deployment(repoName, uniqueID, env)

	log := telemetry.NewLogger(verbose).With().
		Str("run_id", uuid.NewString()).
		Str("deployment", deployment).
		Logger()

	metrics := telemetry.NewMetrics()
	if metricsListen != "" {
		serveMetrics(log, metrics)
	}

	executor := cmk.New(cmk.Config{
		Binary:  settings.API.Binary,
		Logger:  log,
		Metrics: metrics,
	})

	return &app{
		deployment: deployment,
		settings:   settings,
		log:        log,
		metrics:    metrics,
		cloud:      cloud.New(executor),
	}, nil
}

func serveMetrics(log zerolog.Logger, metrics *telemetry.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	go func() {
		log.Debug().Str("addr", metricsListen).Msg("serving metrics")

		if err := http.ListenAndServe(metricsListen, mux); err != nil {
			log.Warn().Err(err).Msg("metrics listener stopped")
		}
	}()
}

func loadDesiredState(settings config.Config) (models.DesiredState, error) {
	document, err := os.ReadFile(configPath)
	if err != nil {
		return models.DesiredState{}, fmt.Errorf("failed to read desired state: %w", err)
	}

	state, err := validate.New(settings.Catalog).Parse(document)
	if err != nil {
		return models.DesiredState{}, fmt.Errorf("failed to validate desired state: %w", err)
	}

	return state, nil
}

func loadPublicKey(log zerolog.Logger) (string, error) {
	data, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return "", fmt.Errorf("failed to read public key: %w", err)
	}

	key, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse public key: %w", err)
	}

	log.Debug().Str("fingerprint", ssh.FingerprintSHA256(key)).Msg("loaded public key")

	return strings.TrimSpace(string(data)), nil
}

func writeDescriptor(descriptor models.Descriptor) error {
	data, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode descriptor: %w", err)
	}

	if outputPath == "" {
		fmt.Println(string(data))
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write descriptor: %w", err)
	}

	return nil
}

func init() {
	root.PersistentFlags().StringVar(&repoName, "repo-name", "", "Repository the deployment belongs to")
	root.PersistentFlags().StringVar(&uniqueID, "unique-id", "", "Unique identifier isolating this deployment")
	root.PersistentFlags().StringVar(&env, "env", naming.DefaultEnv, "Deployment environment")
	root.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to the engine settings file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&metricsListen, "metrics-listen", "", "Address to serve prometheus metrics on")
	root.MarkPersistentFlagRequired("repo-name")
	root.MarkPersistentFlagRequired("unique-id")

	provisionCmd.Flags().StringVar(&configPath, "config", "", "Path to the desired state document")
	provisionCmd.Flags().StringVar(&publicKeyPath, "public-key", "", "Path to the ssh public key to install")
	provisionCmd.Flags().StringVar(&outputPath, "output", "", "Path for the output descriptor (default stdout)")
	provisionCmd.Flags().BoolVar(&recoverMode, "recover", false, "Seed data volumes from their latest snapshots")
	provisionCmd.MarkFlagRequired("config")
	provisionCmd.MarkFlagRequired("public-key")

	validateCmd.Flags().StringVar(&configPath, "config", "", "Path to the desired state document")
	validateCmd.MarkFlagRequired("config")

	teardownCmd.Flags().StringVar(&zone, "zone", "", "Only tear down resources in this zone")
	teardownCmd.Flags().BoolVar(&allZones, "all-zones", false, "Tear down every matching network across zones")

	verifyCmd.Flags().StringVar(&configPath, "config", "", "Path to the desired state document")
	verifyCmd.Flags().StringVar(&reportPath, "report", "", "Path for the YAML check report")
	verifyCmd.MarkFlagRequired("config")

	root.AddCommand(provisionCmd, validateCmd, teardownCmd, verifyCmd)
}

func main() {
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
