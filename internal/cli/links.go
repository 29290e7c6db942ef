package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/shortlink/internal/app"
	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/shortener"
)

var (
	createURL      string
	createValidity int
	createCode     string
	outputJSON     bool
)

// CreateCmd shortens a URL without going through the HTTP API.
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a short link",
	Long: `Create a short link for a URL.

Example:
  linkctl create --url=https://example.com/docs --validity=60
  linkctl create --url=https://example.com --code=home`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

// StatsCmd prints a link record, expired or not.
var StatsCmd = &cobra.Command{
	Use:   "stats <code>",
	Short: "Show click statistics for a short code",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	CreateCmd.Flags().StringVar(&createURL, "url", "", "the URL to shorten")
	CreateCmd.Flags().IntVar(&createValidity, "validity", 0, "validity in minutes (default from LINK_DEFAULT_VALIDITY)")
	CreateCmd.Flags().StringVar(&createCode, "code", "", "custom short code")
	_ = CreateCmd.MarkFlagRequired("url")

	for _, c := range []*cobra.Command{CreateCmd, StatsCmd} {
		c.Flags().BoolVar(&outputJSON, "json", false, "print the record as JSON")
	}

	RootCmd.AddCommand(CreateCmd, StatsCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	var created shortener.CreatedLink
	err := withService(cmd.Context(), func(ctx context.Context, svc shortener.Service) error {
		var err error
		created, err = svc.Create(ctx, shortener.CreateLinkRequest{
			OriginalURL:     createURL,
			ValidityMinutes: createValidity,
			CustomCode:      createCode,
		})
		return err
	})
	if err != nil {
		return describe("create failed", err)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, shortener.CreateLinkResponse{
			ShortURL:     created.ShortURL,
			LinkResponse: shortener.NewLinkResponse(created.Link),
		})
	}

	fmt.Fprintf(out, "Short URL: %s\n", created.ShortURL)
	fmt.Fprintf(out, "Code:      %s\n", created.Code)
	fmt.Fprintf(out, "Expires:   %s\n", created.Expiry.UTC().Format(time.RFC3339))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	code := args[0]

	var link shortener.Link
	err := withService(cmd.Context(), func(ctx context.Context, svc shortener.Service) error {
		var err error
		link, err = svc.Stats(ctx, code)
		return err
	})
	if err != nil {
		return describe("stats failed", err)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(out, shortener.NewLinkResponse(link))
	}

	status := "active"
	if link.IsExpired(time.Now()) {
		status = "expired"
	}
	fmt.Fprintf(out, "Code:    %s\n", link.Code)
	fmt.Fprintf(out, "URL:     %s\n", link.OriginalURL)
	fmt.Fprintf(out, "Clicks:  %d\n", link.Clicks)
	fmt.Fprintf(out, "Created: %s\n", link.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "Expires: %s (%s)\n", link.Expiry.UTC().Format(time.RFC3339), status)
	return nil
}

// withService wires the application against the configured store, runs fn
// and releases the store and audit pipeline afterwards.
func withService(ctx context.Context, fn func(context.Context, shortener.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.NewWithConfig(ctx, Cfg, Logger)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a.Service)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), Cfg.Audit.Timeout+time.Second)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

func describe(prefix string, err error) error {
	switch errx.KindOf(err) {
	case errx.NotFound:
		return fmt.Errorf("%s: shortcode not found", prefix)
	case errx.Conflict:
		return fmt.Errorf("%s: shortcode already exists", prefix)
	case errx.Invalid:
		if cause := errx.Cause(err); cause != nil {
			return fmt.Errorf("%s: %w", prefix, cause)
		}
	}
	return fmt.Errorf("%s: %w", prefix, err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
