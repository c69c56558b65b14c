// Command watermarkd serves the invisible-watermark embed/verify API over
// HTTP and statically serves the persisted reference images.
package main

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	watermark "github.com/yyyoichi/watermark_verify"
	"github.com/yyyoichi/watermark_verify/adapter/blindmark"
	"github.com/yyyoichi/watermark_verify/adapter/lsbmark"
	"github.com/yyyoichi/watermark_verify/config"
	"github.com/yyyoichi/watermark_verify/internal/engine"
	"github.com/yyyoichi/watermark_verify/internal/logging"
	"github.com/yyyoichi/watermark_verify/internal/observability"
)

func main() {
	configPath := pflag.String("config", "", "path to TOML config file")
	addr := pflag.String("addr", "", "listen address (overrides config)")
	pflag.Parse()

	_ = godotenv.Load()
	log := logging.Init("watermarkd")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	svc, err := newService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init service")
	}
	observability.Register()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/embed", embedHandler(svc, cfg))
	router.POST("/verify", verifyHandler(svc))
	router.Static("/files", svc.StorageDir())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"adapter": svc.DefaultAdapter(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("addr", cfg.Addr).Str("adapter", svc.DefaultAdapter()).Msg("listening")
	if err := router.Run(cfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newService(cfg config.Config, log zerolog.Logger) (*watermark.Service, error) {
	var blindOpts []blindmark.Option
	if cfg.Blindmark.Seed != 0 {
		blindOpts = append(blindOpts, blindmark.WithSeed(cfg.Blindmark.Seed))
	}
	if cfg.Blindmark.D1 != 0 {
		blindOpts = append(blindOpts, blindmark.WithParams(engine.Params{
			D1: cfg.Blindmark.D1,
			D2: cfg.Blindmark.D2,
		}))
	}
	var lsbOpts []lsbmark.Option
	if cfg.Lsbmark.Seed != 0 {
		lsbOpts = append(lsbOpts, lsbmark.WithSeed(cfg.Lsbmark.Seed))
	}
	return watermark.New(
		watermark.WithAdapter(blindmark.New(blindOpts...)),
		watermark.WithAdapter(lsbmark.New(lsbOpts...)),
		watermark.WithDefaultAdapter(cfg.Adapter),
		watermark.WithStorageDir(cfg.StorageDir),
		watermark.WithLogger(log),
	)
}

type embedResponse struct {
	WatermarkID            string `json:"watermark_id"`
	WmLen                  int    `json:"wm_len"`
	WatermarkedImageBase64 string `json:"watermarked_image_base64"`
	Message                string `json:"message"`
	FileURL                string `json:"file_url,omitempty"`
}

type verifyResponse struct {
	WatermarkFound     bool    `json:"watermark_found"`
	MatchesExpected    bool    `json:"matches_expected"`
	Status             string  `json:"status"`
	ExtractedWatermark *string `json:"extracted_watermark"`
	PhashDistance      int     `json:"phash_distance"`
	Details            any     `json:"details"`
}

func embedHandler(svc *watermark.Service, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		data, ok := formFile(c, "file")
		if !ok {
			return
		}
		payload := c.PostForm("wm_text")

		res, err := svc.Embed(c.Request.Context(), data, payload)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		observability.RecordEmbed(svc.DefaultAdapter(), outcome, time.Since(start))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, embedResponse{
			WatermarkID:            res.ID,
			WmLen:                  res.MarkBits,
			WatermarkedImageBase64: base64.StdEncoding.EncodeToString(res.PNG),
			Message:                "Watermark embedded successfully.",
			FileURL:                fileURL(c, cfg, res.RefPath),
		})
	}
}

func verifyHandler(svc *watermark.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		data, ok := formFile(c, "file")
		if !ok {
			return
		}
		id := c.PostForm("watermark_id")
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "watermark_id is required"})
			return
		}
		tryRecover := true
		if raw := c.PostForm("try_recover"); raw != "" {
			if v, err := strconv.ParseBool(raw); err == nil {
				tryRecover = v
			}
		}

		res, err := svc.Verify(c.Request.Context(), data, id, tryRecover)
		status := "error"
		if err == nil {
			status = string(res.Status)
		}
		observability.RecordVerify(svc.DefaultAdapter(), status, time.Since(start))
		if err != nil {
			abortWithError(c, err)
			return
		}

		resp := verifyResponse{
			WatermarkFound:  res.Found,
			MatchesExpected: res.Matches,
			Status:          string(res.Status),
			PhashDistance:   res.Distance,
		}
		if res.Found {
			resp.ExtractedWatermark = &res.Payload
		}
		if res.Details != nil {
			resp.Details = res.Details
		}
		c.JSON(http.StatusOK, resp)
	}
}

func formFile(c *gin.Context, field string) ([]byte, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": field + " is required"})
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "cannot read " + field})
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "cannot read " + field})
		return nil, false
	}
	return data, true
}

func fileURL(c *gin.Context, cfg config.Config, refPath string) string {
	base := cfg.BaseURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/files/" + filepath.ToSlash(refPath)
}

func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, watermark.ErrInvalidImage),
		errors.Is(err, watermark.ErrEmbedFailed):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case errors.Is(err, watermark.ErrUnknownIdentity):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	}
}
