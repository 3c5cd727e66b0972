package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/hokaccha/go-prettyjson"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/valinor-ai/tenantscope/internal/audit"
	"github.com/valinor-ai/tenantscope/internal/auth"
	"github.com/valinor-ai/tenantscope/internal/datascope"
	"github.com/valinor-ai/tenantscope/internal/platform/config"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
	"github.com/valinor-ai/tenantscope/internal/platform/telemetry"
	"github.com/valinor-ai/tenantscope/internal/resource"
	"github.com/valinor-ai/tenantscope/internal/share"
	"github.com/valinor-ai/tenantscope/internal/tenant"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: tenantscope <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  migrate     - Apply pending migrations and print the schema version")
	fmt.Println("  predicate   - Print the visibility filter for a user, resource type and operation")
	fmt.Println("  share       - Share one record with another tenant")
	fmt.Println("  revoke      - Revoke a share grant")
	fmt.Println("  shares      - List share grants")
	fmt.Println("  copy        - Copy records into another tenant")
	fmt.Println("  events      - List audit events")
	fmt.Println("  tenants     - List tenants")
	fmt.Println("")
	fmt.Println("Run 'tenantscope <command> -h' for command options.")
}

// app holds the wired services shared by all commands.
type app struct {
	pool     *database.Pool
	tenants  *tenant.Store
	registry *resource.Registry
	loader   *auth.Loader
	builder  *datascope.Builder
	shares   *share.Service
	events   *audit.Store
	auditLog *audit.AsyncLogger
}

func run(command string, args []string) error {
	if command == "help" || command == "-h" || command == "--help" {
		usage()
		return nil
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	telemetry.SetDefault(logger)

	if cfg.Database.URL == "" {
		return errors.New("database.url is required (TENANTSCOPE_DATABASE_URL)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if command == "migrate" {
		return runMigrate(cfg, args)
	}

	var connectOpts []database.ConnectOption
	if strings.EqualFold(cfg.Log.Level, "debug") {
		connectOpts = append(connectOpts, database.WithQueryLog(telemetry.Component(logger, "sql")))
	}
	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns, connectOpts...)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	a := newApp(cfg, pool, logger)
	defer func() {
		if err := a.auditLog.Close(); err != nil {
			slog.Warn("closing audit logger", "error", err)
		}
		if st := a.auditLog.Stats(); st.Dropped > 0 || st.Failed > 0 {
			slog.Warn("audit events lost", "dropped", st.Dropped, "failed", st.Failed)
		}
	}()

	switch command {
	case "predicate":
		return a.predicate(ctx, args)
	case "share":
		return a.share(ctx, args)
	case "revoke":
		return a.revoke(ctx, args)
	case "shares":
		return a.listShares(ctx, args)
	case "copy":
		return a.copy(ctx, args)
	case "events":
		return a.listEvents(ctx, args)
	case "tenants":
		return a.listTenants(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func newApp(cfg *config.Config, pool *database.Pool, logger *slog.Logger) *app {
	tenants := tenant.NewStore()
	users := tenant.NewUserStore()
	roles := tenant.NewRoleStore()
	records := resource.NewStore()
	grants := share.NewStore()
	registry := resource.Copyable()

	deptResolver := datascope.NewDepartmentResolver(
		tenant.NewDepartmentStore(),
		datascope.WithCacheTTL(time.Duration(cfg.Scope.DepartmentCacheTTL)*time.Second),
	)

	builder := datascope.NewBuilder(
		datascope.NewTenantResolver(tenants),
		deptResolver,
		share.NewResolver(grants),
		datascope.WithConcurrency(cfg.Scope.Concurrent),
		datascope.WithLogger(logger),
	)

	events := audit.NewStore()
	auditLog := audit.NewAsyncLogger(pool, events, audit.ConfigFrom(cfg.Audit, logger))

	copier := share.NewCopier(registry, records, tenants, database.NewTransactor(pool), share.NewCloner(), logger)

	return &app{
		pool:     pool,
		tenants:  tenants,
		registry: registry,
		loader:   auth.NewLoader(users, roles),
		builder:  builder,
		shares:   share.NewService(grants, tenants, copier, auditLog),
		events:   events,
		auditLog: auditLog,
	}
}

func runMigrate(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	path := fs.String("path", cfg.Database.MigrationsPath, "Directory holding the migration files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sourceURL := fmt.Sprintf("file://%s", *path)
	if err := database.RunMigrations(cfg.Database.URL, sourceURL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	version, dirty, err := database.MigrationVersion(cfg.Database.URL, sourceURL)
	if err != nil {
		return fmt.Errorf("reading migration version: %w", err)
	}
	fmt.Printf("Current version: %d (dirty: %t)\n", version, dirty)
	return nil
}

// actor loads the identity of userID. Zero means an anonymous system actor.
func (a *app) actor(ctx context.Context, userID int64) (*auth.Identity, error) {
	if userID == 0 {
		return nil, nil
	}
	identity, err := a.loader.Load(ctx, a.pool, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", userID, err)
	}
	return identity, nil
}

// predicateArgs are the parsed options of the predicate command.
type predicateArgs struct {
	userID       int64
	resourceType string
	op           datascope.Operation
}

func parsePredicateArgs(args []string, tags []string) (predicateArgs, error) {
	fs := flag.NewFlagSet("predicate", flag.ContinueOnError)
	userID := fs.Int64("user", 0, "Acting user id")
	resourceType := fs.String("type", "", "Resource type: "+strings.Join(tags, ", "))
	opName := fs.String("op", string(datascope.OpRead), "Operation: read, update or delete")
	if err := fs.Parse(args); err != nil {
		return predicateArgs{}, err
	}
	if *userID <= 0 {
		return predicateArgs{}, errors.New("-user is required")
	}
	if *resourceType == "" {
		return predicateArgs{}, errors.New("-type is required")
	}
	op, err := datascope.ParseOperation(*opName)
	if err != nil {
		return predicateArgs{}, err
	}
	return predicateArgs{userID: *userID, resourceType: *resourceType, op: op}, nil
}

func (a *app) predicate(ctx context.Context, args []string) error {
	p, err := parsePredicateArgs(args, a.registry.Tags())
	if err != nil {
		return err
	}
	m, err := a.registry.Lookup(p.resourceType)
	if err != nil {
		return err
	}
	actor, err := a.actor(ctx, p.userID)
	if err != nil {
		return err
	}

	filter, err := a.builder.Filter(ctx, a.pool, m, actor, p.op)
	if err != nil {
		return fmt.Errorf("building predicate: %w", err)
	}
	sel := sql.Dialect(dialect.Postgres).Select(m.PrimaryKey()).From(sql.Table(m.Table()))
	filter(sel)
	query, queryArgs := sel.Query()

	fmt.Println(query)
	if len(queryArgs) > 0 {
		fmt.Printf("args: %v\n", queryArgs)
	}
	return nil
}

func parseShareArgs(args []string) (int64, share.CreateInput, error) {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	userID := fs.Int64("user", 0, "Acting user id")
	resourceType := fs.String("type", "", "Resource type")
	resourceID := fs.Int64("id", 0, "Record id")
	target := fs.Int64("target", 0, "Target tenant id")
	shareType := fs.String("share-type", share.View.String(), "Share type: view or view_and_edit")
	expire := fs.String("expire", "", "Expiry time (RFC 3339), empty for no expiry")
	remark := fs.String("remark", "", "Free-form remark")
	if err := fs.Parse(args); err != nil {
		return 0, share.CreateInput{}, err
	}

	st, err := share.ParseShareType(*shareType)
	if err != nil {
		return 0, share.CreateInput{}, err
	}
	in := share.CreateInput{
		ResourceType:   *resourceType,
		ResourceID:     *resourceID,
		TargetTenantID: *target,
		ShareType:      st,
		Remark:         *remark,
	}
	if *expire != "" {
		t, err := time.Parse(time.RFC3339, *expire)
		if err != nil {
			return 0, share.CreateInput{}, fmt.Errorf("invalid -expire: %w", err)
		}
		in.ExpireTime = &t
	}
	return *userID, in, nil
}

func (a *app) share(ctx context.Context, args []string) error {
	userID, in, err := parseShareArgs(args)
	if err != nil {
		return err
	}
	actor, err := a.actor(ctx, userID)
	if err != nil {
		return err
	}
	g, err := a.shares.Create(ctx, a.pool, actor, in)
	if err != nil {
		return fmt.Errorf("creating share: %w", err)
	}
	return printJSON(g)
}

func parseRevokeArgs(args []string) (userID, grantID int64, err error) {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	user := fs.Int64("user", 0, "Acting user id")
	id := fs.Int64("id", 0, "Share grant id")
	if err := fs.Parse(args); err != nil {
		return 0, 0, err
	}
	if *id <= 0 {
		return 0, 0, errors.New("-id is required")
	}
	return *user, *id, nil
}

func (a *app) revoke(ctx context.Context, args []string) error {
	userID, id, err := parseRevokeArgs(args)
	if err != nil {
		return err
	}
	actor, err := a.actor(ctx, userID)
	if err != nil {
		return err
	}
	if err := a.shares.Revoke(ctx, a.pool, actor, id); err != nil {
		return fmt.Errorf("revoking share %d: %w", id, err)
	}
	fmt.Printf("Share %d revoked\n", id)
	return nil
}

func parseSharesArgs(args []string) (share.ListFilter, error) {
	fs := flag.NewFlagSet("shares", flag.ContinueOnError)
	resourceType := fs.String("type", "", "Resource type")
	resourceID := fs.Int64("id", 0, "Record id")
	target := fs.Int64("target", 0, "Target tenant id")
	shareType := fs.String("share-type", "", "Share type: view or view_and_edit")
	status := fs.String("status", "", "Status: 0 active, 1 revoked")
	limit := fs.Int("limit", 50, "Maximum grants to return")
	offset := fs.Int("offset", 0, "Grants to skip")
	if err := fs.Parse(args); err != nil {
		return share.ListFilter{}, err
	}

	f := share.ListFilter{
		ResourceType:   *resourceType,
		ResourceID:     *resourceID,
		TargetTenantID: *target,
		Status:         share.Status(*status),
		Limit:          *limit,
		Offset:         *offset,
	}
	switch f.Status {
	case "", share.StatusActive, share.StatusRevoked:
	default:
		return share.ListFilter{}, fmt.Errorf("invalid -status %q", *status)
	}
	if *shareType != "" {
		st, err := share.ParseShareType(*shareType)
		if err != nil {
			return share.ListFilter{}, err
		}
		f.ShareType = st
	}
	return f, nil
}

func (a *app) listShares(ctx context.Context, args []string) error {
	f, err := parseSharesArgs(args)
	if err != nil {
		return err
	}
	grants, err := a.shares.List(ctx, a.pool, f)
	if err != nil {
		return err
	}
	return printJSON(grants)
}

func parseCopyArgs(args []string, tags []string) (int64, share.CopyRequest, error) {
	fs := flag.NewFlagSet("copy", flag.ContinueOnError)
	userID := fs.Int64("user", 0, "Acting user id")
	resourceType := fs.String("type", "", "Resource type: "+strings.Join(tags, ", "))
	ids := fs.String("ids", "", "Comma-separated record ids")
	target := fs.Int64("target", 0, "Target tenant id")
	if err := fs.Parse(args); err != nil {
		return 0, share.CopyRequest{}, err
	}

	resourceIDs, err := parseIDs(*ids)
	if err != nil {
		return 0, share.CopyRequest{}, err
	}
	return *userID, share.CopyRequest{
		ResourceType:   *resourceType,
		ResourceIDs:    resourceIDs,
		TargetTenantID: *target,
	}, nil
}

func (a *app) copy(ctx context.Context, args []string) error {
	userID, req, err := parseCopyArgs(args, a.registry.Tags())
	if err != nil {
		return err
	}
	actor, err := a.actor(ctx, userID)
	if err != nil {
		return err
	}
	res, err := a.shares.Copy(ctx, actor, req)
	if err != nil {
		return fmt.Errorf("copying records: %w", err)
	}
	return printJSON(res)
}

func parseEventsArgs(args []string) (audit.ListParams, error) {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	tenantID := fs.Int64("tenant", 0, "Tenant id")
	action := fs.String("action", "", "Action, e.g. share.created")
	resourceType := fs.String("type", "", "Resource type")
	limit := fs.Int("limit", 100, "Maximum events to return")
	if err := fs.Parse(args); err != nil {
		return audit.ListParams{}, err
	}

	p := audit.ListParams{Action: *action, ResourceType: *resourceType, Limit: *limit}
	if *tenantID != 0 {
		p.TenantID = tenantID
	}
	return p, nil
}

func (a *app) listEvents(ctx context.Context, args []string) error {
	p, err := parseEventsArgs(args)
	if err != nil {
		return err
	}
	events, err := a.events.List(ctx, a.pool, p)
	if err != nil {
		return err
	}
	return printJSON(events)
}

func parseTenantsArgs(args []string) (tenant.ListParams, error) {
	fs := flag.NewFlagSet("tenants", flag.ContinueOnError)
	name := fs.String("name", "", "Name substring")
	code := fs.String("code", "", "Code substring")
	active := fs.String("active", "", "Active flag: true or false, empty for both")
	status := fs.String("status", "", "Status: 0 normal, 1 deleted")
	limit := fs.Int("limit", 50, "Maximum tenants to return")
	offset := fs.Int("offset", 0, "Tenants to skip")
	if err := fs.Parse(args); err != nil {
		return tenant.ListParams{}, err
	}

	p := tenant.ListParams{Name: *name, Code: *code, Status: *status, Limit: *limit, Offset: *offset}
	switch p.Status {
	case "", tenant.StatusNormal, tenant.StatusDisabled:
	default:
		return tenant.ListParams{}, fmt.Errorf("invalid -status %q", *status)
	}
	if *active != "" {
		v, err := cast.ToBoolE(*active)
		if err != nil {
			return tenant.ListParams{}, fmt.Errorf("invalid -active %q", *active)
		}
		p.IsActive = &v
	}
	return p, nil
}

func (a *app) listTenants(ctx context.Context, args []string) error {
	p, err := parseTenantsArgs(args)
	if err != nil {
		return err
	}
	tenants, err := a.tenants.List(ctx, a.pool, p)
	if err != nil {
		return err
	}
	return printJSON(tenants)
}

// parseIDs splits a comma-separated id list, ignoring blanks.
func parseIDs(s string) ([]int64, error) {
	parts := lo.Without(lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	}), "")
	if len(parts) == 0 {
		return nil, errors.New("-ids is required")
	}

	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := cast.ToInt64E(p)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(v any) error {
	b, err := prettyjson.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
