// Package datawarehouse provides read-only access to the MS SQL Server
// warehouse that mirrors traffic fines reported by the authorities. The counts
// feed the violations factor of the delinquency risk score.
package datawarehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/alaraf/fleet-finance/internal/config"
	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"go.uber.org/zap"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 10 * time.Second
	defaultBackoffFactor  = 2.0

	defaultHealthCheckTimeout = 5 * time.Second
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Client provides read-only access to the warehouse
type Client struct {
	db           *sql.DB
	logger       *zap.Logger
	queryTimeout time.Duration
	table        string
}

// HealthStatus represents the health check result for the warehouse connection
type HealthStatus struct {
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
	MaxOpen   int           `json:"max_open_connections"`
	Open      int           `json:"open_connections"`
	InUse     int           `json:"in_use"`
	Idle      int           `json:"idle"`
	WaitCount int64         `json:"wait_count"`
}

// NewClient connects to the warehouse. Returns nil, nil when the warehouse is
// disabled or its credentials are missing; callers treat a nil client as "no
// external violations".
func NewClient(cfg *config.DataWarehouseConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Data warehouse connection disabled")
		return nil, nil
	}

	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("Data warehouse enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	if !tableNamePattern.MatchString(cfg.ViolationsTable) {
		return nil, fmt.Errorf("invalid violations table name: %q", cfg.ViolationsTable)
	}

	connStr, err := buildConnectionString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	var db *sql.DB
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxRetries; attempt++ {
		db, err = open(connStr, cfg)
		if err == nil {
			logger.Info("Data warehouse connection established",
				zap.Int("attempts_taken", attempt),
				zap.String("violations_table", cfg.ViolationsTable),
			)
			return &Client{
				db:           db,
				logger:       logger,
				queryTimeout: cfg.QueryTimeoutDuration(),
				table:        cfg.ViolationsTable,
			}, nil
		}

		logger.Warn("Data warehouse connection attempt failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", defaultMaxRetries),
		)
		if attempt < defaultMaxRetries {
			time.Sleep(backoff)
			backoff = nextBackoff(backoff)
		}
	}

	return nil, fmt.Errorf("failed to connect to data warehouse after %d attempts: %w", defaultMaxRetries, err)
}

func open(connStr string, cfg *config.DataWarehouseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	ctx, cancel := context.WithTimeout(context.Background(), defaultHealthCheckTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func nextBackoff(current time.Duration) time.Duration {
	return min(time.Duration(float64(current)*defaultBackoffFactor), defaultMaxBackoff)
}

// buildConnectionString constructs a SQL Server connection URL.
// The configured URL is host:port/database or host:port.
func buildConnectionString(cfg *config.DataWarehouseConfig) (string, error) {
	hostPort, database, _ := strings.Cut(cfg.URL, "/")
	host, port, found := strings.Cut(hostPort, ":")
	if host == "" {
		return "", fmt.Errorf("missing host in data warehouse url")
	}
	if !found || port == "" {
		port = "1433"
	}

	query := url.Values{}
	query.Add("encrypt", "true")
	query.Add("TrustServerCertificate", "false")
	query.Add("connection timeout", "30")
	query.Add("ApplicationIntent", "ReadOnly")
	if database != "" {
		query.Add("database", database)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", host, port),
		RawQuery: query.Encode(),
	}

	return u.String(), nil
}

// violationsQuery counts open fines for one customer of one company
func violationsQuery(table string) string {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE company_id = @p1 AND customer_id = @p2 AND status <> 'paid'",
		table,
	)
}

// CountViolations returns the number of unpaid external fines for a customer.
// A nil client counts zero.
func (c *Client) CountViolations(ctx context.Context, companyID, customerID string) (int, error) {
	if c == nil || c.db == nil {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	start := time.Now()
	var count int
	if err := c.db.QueryRowContext(ctx, violationsQuery(c.table), companyID, customerID).Scan(&count); err != nil {
		c.logger.Warn("Data warehouse violation count failed",
			zap.String("company_id", companyID),
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("failed to count warehouse violations: %w", err)
	}

	c.logger.Debug("Data warehouse violation count",
		zap.String("customer_id", customerID),
		zap.Int("count", count),
		zap.Duration("duration", time.Since(start)),
	)
	return count, nil
}

// Close gracefully closes the warehouse connection
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}

	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close data warehouse connection", zap.Error(err))
		return fmt.Errorf("failed to close data warehouse connection: %w", err)
	}

	c.logger.Info("Data warehouse connection closed")
	return nil
}

// HealthCheck pings the warehouse and reports pool statistics
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if c == nil || c.db == nil {
		return &HealthStatus{Status: "disabled"}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
	}

	start := time.Now()
	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	stats := c.db.Stats()
	status := &HealthStatus{
		Status:    "healthy",
		Latency:   latency,
		MaxOpen:   stats.MaxOpenConnections,
		Open:      stats.OpenConnections,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
		WaitCount: stats.WaitCount,
	}

	if err != nil {
		c.logger.Warn("Data warehouse health check failed",
			zap.Error(err),
			zap.Duration("latency", latency),
		)
		status.Status = "unhealthy"
		status.Error = err.Error()
	}

	return status
}

// IsEnabled reports whether the client holds a live connection
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}

// Ping returns the health check failure as an error
func (c *Client) Ping(ctx context.Context) error {
	status := c.HealthCheck(ctx)
	if status.Status == "unhealthy" {
		return fmt.Errorf("data warehouse unhealthy: %s", status.Error)
	}
	return nil
}
