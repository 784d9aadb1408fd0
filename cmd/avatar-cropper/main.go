package main

import (
	"encoding/json"
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	avatarcropper "github.com/profilekit/avatar-cropper"
	"github.com/profilekit/avatar-cropper/internal/config"
	"github.com/profilekit/avatar-cropper/internal/utils"
	"github.com/profilekit/avatar-cropper/pkg/client"
	"github.com/profilekit/avatar-cropper/pkg/cropper"
	"github.com/profilekit/avatar-cropper/pkg/imageio"
	"github.com/profilekit/avatar-cropper/pkg/llamacpp"
	"github.com/profilekit/avatar-cropper/pkg/ollama"
	"github.com/profilekit/avatar-cropper/pkg/placement"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("avatar-cropper"),
		kong.Description("Circular avatar cropping for profile images."),
		kong.UsageOnError(),
	)
	return cliCtx.Run()
}

type cliArgs struct {
	Crop   cropCmd   `cmd:"" help:"Crop images into circular avatars."`
	Serve  serveCmd  `cmd:"" help:"Run the interactive cropping session server."`
	Config configCmd `cmd:"" help:"Manage the configuration file."`
}

func setupLogger(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.NewConsoleWriter()).Level(level)
	zerolog.DefaultContextLogger = &log.Logger
}

// loadConfig builds the effective configuration: defaults, then the config
// file when present, then environment overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()

	path := config.GetConfigPath()
	if utils.FileExists(path) {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		cfg = loaded
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// sessionOptions converts the configuration into session options.
func sessionOptions(cfg *config.Config) (avatarcropper.Options, error) {
	opts := avatarcropper.DefaultOptions()
	opts.Viewport = cfg.Viewport.Side
	opts.MinRadius = cfg.Viewport.MinRadius
	opts.Cropper = cropper.Config{
		CanonicalSide: cfg.Cropper.CanonicalSide,
		Format:        cropper.ParseFormat(cfg.Cropper.Format),
		Quality:       cfg.Cropper.Quality,
		Lossless:      cfg.Cropper.Lossless,
	}
	opts.Loader = imageio.Config{
		MinDimension: cfg.Loader.MinDimension,
		MaxBytes:     cfg.Loader.MaxBytes,
	}
	opts.PaddingRatio = cfg.Placement.PaddingRatio

	placer, err := placerFor(cfg)
	if err != nil {
		return opts, err
	}
	opts.Placer = placer
	opts.PlacerModel = cfg.Placement.Model
	return opts, nil
}

// placerFor builds the vision placement backend. It returns nil when the
// configuration keeps placement local.
func placerFor(cfg *config.Config) (*placement.Placer, error) {
	var visionClient client.VisionClient
	var err error

	switch cfg.Placement.Backend {
	case "", "off", "local":
		return nil, nil
	case "ollama":
		visionClient, err = ollama.NewClient(cfg.Placement.OllamaURL)
	case "llamacpp":
		visionClient, err = llamacpp.NewClient(cfg.Placement.LlamaCppURL)
	default:
		return nil, fmt.Errorf("unknown placement backend: %s", cfg.Placement.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Placement.Backend, err)
	}

	return placement.NewWithConfig(visionClient, placement.Config{
		PaddingRatio:  cfg.Placement.PaddingRatio,
		MinConfidence: cfg.Placement.MinConfidence,
	}), nil
}

type configCmd struct {
	Init configInitCmd `cmd:"" help:"Write the default configuration file."`
	Show configShowCmd `cmd:"" help:"Print the effective configuration."`
	Path configPathCmd `cmd:"" help:"Print the configuration file path."`
}

type configInitCmd struct {
	Force bool `help:"Overwrite an existing configuration file."`
}

func (cmd *configInitCmd) Run() error {
	path := config.GetConfigPath()
	if utils.FileExists(path) && !cmd.Force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}
	if err := config.Default().SaveToFile(path); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

type configShowCmd struct{}

func (cmd *configShowCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

type configPathCmd struct{}

func (cmd *configPathCmd) Run() error {
	fmt.Println(config.GetConfigPath())
	return nil
}
