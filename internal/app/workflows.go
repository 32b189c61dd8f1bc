package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kadirbelkuyu/schemasync/internal/apply"
	"github.com/kadirbelkuyu/schemasync/internal/catalog"
	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

const (
	SideDB1 = "Database 1"
	SideDB2 = "Database 2"
)

// SideError labels a failure with the database it came from. Only
// connection failures read as "Error connecting to"; empty schemas and
// unreadable snapshot files name the side alone.
type SideError struct {
	Side string
	Err  error
}

func (e *SideError) Error() string {
	if errs.IsConnectionFailed(e.Err) {
		return fmt.Sprintf("Error connecting to %s: %v", e.Side, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Side, e.Err)
}

func (e *SideError) Unwrap() error {
	return e.Err
}

// Source is one side of a comparison: a live database or a snapshot file.
type Source struct {
	Config       *config.DatabaseConfig
	SnapshotPath string
}

// LiveSource inspects cfg, with its defaults applied.
func LiveSource(cfg config.DatabaseConfig) Source {
	cfg.ApplyDefaults()
	return Source{Config: &cfg}
}

func FileSource(path string) Source {
	return Source{SnapshotPath: path}
}

func (s Source) String() string {
	if s.SnapshotPath != "" {
		return "snapshot " + s.SnapshotPath
	}
	if s.Config == nil {
		return "<none>"
	}
	return s.Config.String()
}

// dbType is the normalised engine of a live source, "" for snapshot files.
func (s Source) dbType() string {
	if s.Config == nil {
		return ""
	}
	return config.NormalizeDatabaseType(s.Config.Type)
}

type Comparison struct {
	ID        string             `json:"id"`
	DB1       string             `json:"db1"`
	DB2       string             `json:"db2"`
	Diff      *schema.SchemaDiff `json:"diff"`
	Stats     schema.DiffStats   `json:"stats"`
	Snapshot1 *schema.Snapshot   `json:"-"`
	Snapshot2 *schema.Snapshot   `json:"-"`
	Duration  time.Duration      `json:"duration"`
}

type SyncResult struct {
	*Comparison
	Direction  schema.Direction `json:"direction"`
	Dialect    string           `json:"dialect"`
	Statements []string         `json:"statements"`
	Target     Source           `json:"-"`
}

type ServiceOption func(*Service)

// WithParallel inspects both sides concurrently.
func WithParallel(parallel bool) ServiceOption {
	return func(s *Service) {
		s.parallel = parallel
	}
}

func WithApplier(a *apply.Applier) ServiceOption {
	return func(s *Service) {
		s.applier = a
	}
}

// Service runs the compare, sync and inspect workflows. It holds no state
// between requests.
type Service struct {
	inspector catalog.Inspector
	applier   *apply.Applier
	logger    *logger.Logger
	parallel  bool
}

func NewService(inspector catalog.Inspector, log *logger.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = logger.NewLogger(false)
	}
	if inspector == nil {
		inspector = catalog.NewReader(catalog.WithLogger(log))
	}
	s := &Service{inspector: inspector, logger: log}
	for _, opt := range opts {
		opt(s)
	}
	if s.applier == nil {
		s.applier = apply.NewApplier(log)
	}
	return s
}

// Inspect captures one side. An empty result is an EmptySchema error.
func (s *Service) Inspect(ctx context.Context, src Source) (*schema.Snapshot, error) {
	return s.inspectSide(ctx, "Database", src)
}

// Compare inspects both sides and diffs them. Database 2 is not touched when
// database 1 fails in sequential mode.
func (s *Service) Compare(ctx context.Context, a, b Source) (*Comparison, error) {
	start := time.Now()
	snap1, snap2, err := s.inspectPair(ctx, a, b)
	if err != nil {
		return nil, err
	}

	d := schema.Diff(snap1, snap2)
	cmp := &Comparison{
		ID:        uuid.NewString(),
		DB1:       a.String(),
		DB2:       b.String(),
		Diff:      d,
		Stats:     d.Stats(),
		Snapshot1: snap1,
		Snapshot2: snap2,
		Duration:  time.Since(start),
	}
	s.logger.WithField("comparison", cmp.ID).
		Infof("Comparison finished: %d differences", cmp.Stats.Total())
	return cmp, nil
}

// Sync compares both sides and synthesizes the additive DDL for dir. The
// direction and engine checks run before any connection is made.
func (s *Service) Sync(ctx context.Context, a, b Source, dir schema.Direction) (*SyncResult, error) {
	if _, err := schema.ParseDirection(string(dir)); err != nil {
		return nil, err
	}
	if a.dbType() == "mongo" || b.dbType() == "mongo" {
		return nil, errs.New(errs.ErrKindConfiguration, "DDL synthesis is not available for MongoDB; use compare instead")
	}

	target, source := b, a
	if dir == schema.BtoA {
		target, source = a, b
	}
	dialect, err := schema.DialectFor(firstNonEmpty(target.dbType(), source.dbType()))
	if err != nil {
		return nil, err
	}

	cmp, err := s.Compare(ctx, a, b)
	if err != nil {
		return nil, err
	}

	statements, err := schema.Synthesize(cmp.Diff, cmp.Snapshot1, cmp.Snapshot2, dir, schema.WithDialect(dialect))
	if err != nil {
		return nil, err
	}
	for _, stmt := range statements {
		s.logger.Debugf("Generated statement: %s", stmt)
	}

	return &SyncResult{
		Comparison: cmp,
		Direction:  dir,
		Dialect:    dialect.Name(),
		Statements: statements,
		Target:     target,
	}, nil
}

// Apply executes the statements of res against its target.
func (s *Service) Apply(ctx context.Context, res *SyncResult) (*apply.Result, error) {
	if res.Target.Config == nil {
		return nil, errs.New(errs.ErrKindConfiguration, "cannot apply statements to a snapshot file")
	}
	return s.applier.Apply(ctx, *res.Target.Config, res.Statements)
}

func (s *Service) inspectPair(ctx context.Context, a, b Source) (*schema.Snapshot, *schema.Snapshot, error) {
	if !s.parallel {
		snap1, err := s.inspectSide(ctx, SideDB1, a)
		if err != nil {
			return nil, nil, err
		}
		snap2, err := s.inspectSide(ctx, SideDB2, b)
		if err != nil {
			return nil, nil, err
		}
		return snap1, snap2, nil
	}

	var (
		g            errgroup.Group
		snap1, snap2 *schema.Snapshot
		err1, err2   error
	)
	g.Go(func() error {
		snap1, err1 = s.inspectSide(ctx, SideDB1, a)
		return err1
	})
	g.Go(func() error {
		snap2, err2 = s.inspectSide(ctx, SideDB2, b)
		return err2
	})
	_ = g.Wait()

	if err1 != nil {
		return nil, nil, err1
	}
	if err2 != nil {
		return nil, nil, err2
	}
	return snap1, snap2, nil
}

func (s *Service) inspectSide(ctx context.Context, side string, src Source) (*schema.Snapshot, error) {
	var (
		snap *schema.Snapshot
		err  error
	)
	switch {
	case src.SnapshotPath != "":
		snap, err = schema.LoadFile(src.SnapshotPath)
	case src.Config != nil:
		snap, err = s.inspector.Inspect(ctx, *src.Config)
	default:
		err = errs.New(errs.ErrKindConfiguration, "no database or snapshot configured")
	}
	if err != nil {
		return nil, &SideError{Side: side, Err: err}
	}

	if snap.Tables.Len() == 0 {
		return nil, &SideError{Side: side, Err: errs.New(errs.ErrKindEmptySchema,
			"no tables returned: the connection succeeded but the schema is empty (check the database name, user permissions and search_path)")}
	}
	return snap, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
