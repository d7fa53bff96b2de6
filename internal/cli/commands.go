package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lazypower/discover/internal/auth"
	"github.com/lazypower/discover/internal/engine"
	"github.com/lazypower/discover/internal/logger"
	"github.com/lazypower/discover/internal/reqctx"
	"github.com/lazypower/discover/internal/store"
	"github.com/spf13/cobra"
)

// --- recalc command ---

var (
	recalcUser string
	recalcAll  bool
)

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Run a decay pass",
	Long:  "Run one decay pass over a user's feedback (--user) or over every user (--all).",
	RunE:  runRecalc,
}

func runRecalc(cmd *cobra.Command, args []string) error {
	if (recalcUser == "") == !recalcAll {
		return fmt.Errorf("exactly one of --user or --all is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []engine.Option{}
	if cfg.Decay.Seed != 0 {
		opts = append(opts, engine.WithRandom(engine.NewSeededRandom(cfg.Decay.Seed)))
	}
	eng := engine.New(db, logger.Nop(), opts...)
	defer eng.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = reqctx.WithRequestData(ctx, &reqctx.RequestData{RequestID: "cli-" + reqctx.NewRequestID(), UserID: recalcUser})

	var n int
	if recalcAll {
		n, err = eng.SweepAll(ctx)
	} else {
		n, err = eng.RecalculateFeedCountdown(ctx, &auth.Identity{UserID: recalcUser})
	}
	if err != nil {
		return fmt.Errorf("recalc: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updated %d entries\n", n)
	return nil
}

// --- token command ---

var (
	tokenUser     string
	tokenUsername string
	tokenTTL      string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenUser == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if tokenTTL != "" {
		cfg.Auth.TokenTTL = tokenTTL
	}
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return err
	}

	j, err := auth.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("auth: %w (set auth.jwt_secret or DISCOVER_JWT_SECRET)", err)
	}

	username := tokenUsername
	if username == "" {
		username = tokenUser
	}
	tok, err := j.Issue(auth.Identity{UserID: tokenUser, Username: username}, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

// --- item command ---

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage catalog items",
}

var (
	itemTitle       string
	itemCategory    string
	itemDescription string
	itemOwner       string
	itemImages      []string
	itemPrivate     bool
)

var itemAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an item to the catalog",
	RunE:  runItemAdd,
}

func runItemAdd(cmd *cobra.Command, args []string) error {
	title := strings.TrimSpace(itemTitle)
	category := strings.TrimSpace(itemCategory)
	if title == "" || category == "" {
		return fmt.Errorf("--title and --category are required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	item := &store.Item{
		Title:       title,
		Description: strings.TrimSpace(itemDescription),
		Category:    category,
		ImageURLs:   itemImages,
		IsPublic:    !itemPrivate,
		OwnerID:     itemOwner,
	}
	if err := db.CreateItem(context.Background(), item); err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created item %d [%s] %s\n", item.ID, item.Category, item.Title)
	return nil
}

func init() {
	recalcCmd.Flags().StringVar(&recalcUser, "user", "", "User id to recalculate")
	recalcCmd.Flags().BoolVar(&recalcAll, "all", false, "Recalculate every user")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User id (token subject)")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "Display name claim (defaults to --user)")
	tokenCmd.Flags().StringVar(&tokenTTL, "ttl", "", "Token lifetime, overrides auth.token_ttl")

	itemAddCmd.Flags().StringVar(&itemTitle, "title", "", "Item title")
	itemAddCmd.Flags().StringVarP(&itemCategory, "category", "c", "", "Item category")
	itemAddCmd.Flags().StringVar(&itemDescription, "description", "", "Item description")
	itemAddCmd.Flags().StringVar(&itemOwner, "owner", "", "Owner user id")
	itemAddCmd.Flags().StringSliceVar(&itemImages, "image", nil, "Image URL (repeatable)")
	itemAddCmd.Flags().BoolVar(&itemPrivate, "private", false, "Hide the item from feeds")
	itemCmd.AddCommand(itemAddCmd)
}
