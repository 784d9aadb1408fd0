package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	avatarcropper "github.com/profilekit/avatar-cropper"
	"github.com/profilekit/avatar-cropper/internal/utils"
	"github.com/profilekit/avatar-cropper/pkg/cropper"
	"github.com/profilekit/avatar-cropper/pkg/imageio"
)

type cropCmd struct {
	Paths   []string `arg:"" help:"Image files or directories to crop." type:"path"`
	Out     string   `help:"Output directory." default:"avatars" type:"path"`
	Suggest string   `help:"Placement applied before cropping: center, local or model." enum:"center,local,model" default:"local"`
	CenterX *float64 `help:"Override the circle center X in display coordinates."`
	CenterY *float64 `help:"Override the circle center Y in display coordinates."`
	Radius  *float64 `help:"Override the circle radius in display units."`
	Format  string   `help:"Output format override: png, webp or jpg."`
	Preview bool     `help:"Also write a preview with the selection drawn on top."`
	Verbose bool     `help:"Enable verbose logging."`
}

func (cmd *cropCmd) Run() error {
	setupLogger(cmd.Verbose)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	switch cmd.Format {
	case "", "png", "webp", "jpg", "jpeg":
	default:
		return fmt.Errorf("unknown output format: %s", cmd.Format)
	}
	if cmd.Format != "" {
		cfg.Cropper.Format = cmd.Format
	}

	opts, err := sessionOptions(cfg)
	if err != nil {
		return err
	}
	if cmd.Suggest == "model" && opts.Placer == nil {
		return fmt.Errorf("placement backend is %q, configure ollama or llamacpp for model suggestions", cfg.Placement.Backend)
	}

	files, err := collectImageFiles(cmd.Paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no image files found")
	}

	if err := utils.EnsureDir(cmd.Out); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	format := string(cropper.ParseFormat(cfg.Cropper.Format))
	log.Info().Int("files", len(files)).Str("format", format).Msg("cropping")

	pooler := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(runtime.NumCPU())
	for _, file := range files {
		pooler.Go(func(ctx context.Context) error {
			if err := cmd.cropOne(ctx, file, opts, format); err != nil {
				log.Error().Err(err).Str("file", file).Msg("crop failed")
				return err
			}
			return nil
		})
	}
	return pooler.Wait()
}

func (cmd *cropCmd) cropOne(ctx context.Context, path string, opts avatarcropper.Options, format string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	session, err := avatarcropper.NewSession(data, opts)
	if err != nil {
		return err
	}

	switch cmd.Suggest {
	case "local":
		if _, err := session.SuggestLocal(); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("keeping centered placement")
		}
	case "model":
		circle, result, err := session.SuggestModel(ctx)
		if err != nil {
			return fmt.Errorf("model placement failed: %w", err)
		}
		log.Debug().
			Str("file", path).
			Str("label", result.Primary.Label).
			Float64("confidence", result.Primary.Confidence).
			Float64("radius", circle.Radius).
			Msg("model placement")
	}

	if cmd.CenterX != nil || cmd.CenterY != nil || cmd.Radius != nil {
		circle := session.Circle()
		if cmd.CenterX != nil {
			circle.Center.X = *cmd.CenterX
		}
		if cmd.CenterY != nil {
			circle.Center.Y = *cmd.CenterY
		}
		if cmd.Radius != nil {
			circle.Radius = *cmd.Radius
		}
		session.SetCircle(circle)
	}

	avatar, err := session.Confirm(ctx)
	if err != nil {
		return err
	}

	outPath := utils.AvatarOutputName(path, cmd.Out, "_avatar", format)
	if err := os.WriteFile(outPath, avatar, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	log.Info().Str("file", outPath).Str("size", utils.FormatFileSize(int64(len(avatar)))).Msg("wrote avatar")

	if cmd.Preview {
		previewPath := utils.AvatarOutputName(path, cmd.Out, "_preview", "png")
		if err := imageio.New().Save(session.Preview(), previewPath, "png", 92, false); err != nil {
			return fmt.Errorf("failed to write %s: %w", previewPath, err)
		}
		log.Info().Str("file", previewPath).Msg("wrote preview")
	}
	return nil
}

func collectImageFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := utils.ListImageFiles(p)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		if !utils.IsImageFile(p) {
			return nil, fmt.Errorf("%s is not a supported image file", p)
		}
		files = append(files, p)
	}
	return files, nil
}
