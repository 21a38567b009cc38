package journal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Options selects and configures the journal backends.
type Options struct {
	Type        string `yaml:"type" json:"type"`
	DBPath      string `yaml:"db_path,omitempty" json:"db_path,omitempty"`
	TradesFile  string `yaml:"trades_file,omitempty" json:"trades_file,omitempty"`
	EventsFile  string `yaml:"events_file,omitempty" json:"events_file,omitempty"`
	DSN         string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	NATSURL     string `yaml:"nats_url,omitempty" json:"nats_url,omitempty"`
	NATSSubject string `yaml:"nats_subject,omitempty" json:"nats_subject,omitempty"`
}

// Validate checks that the chosen backend has what it needs.
func (o Options) Validate() error {
	switch strings.ToLower(o.Type) {
	case "", "none":
	case "sqlite":
		if o.DBPath == "" {
			return fmt.Errorf("journal: sqlite needs db_path")
		}
	case "csv":
		if o.TradesFile == "" {
			return fmt.Errorf("journal: csv needs trades_file")
		}
	case "postgres":
		if o.DSN == "" {
			return fmt.Errorf("journal: postgres needs dsn")
		}
	default:
		return fmt.Errorf("journal: unknown type %q", o.Type)
	}
	return nil
}

// Open builds the configured store. A NATS URL adds a publisher next to
// the primary backend.
func Open(ctx context.Context, o Options) (Store, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	var stores Multi
	switch strings.ToLower(o.Type) {
	case "sqlite":
		s, err := NewSQLite(o.DBPath)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	case "csv":
		s, err := NewCSV(o.TradesFile, o.EventsFile)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	case "postgres":
		s, err := NewPostgres(ctx, o.DSN)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}

	if o.NATSURL != "" {
		n, err := NewNATS(o.NATSURL, o.NATSSubject)
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		stores = append(stores, n)
	}

	switch len(stores) {
	case 0:
		return Nop{}, nil
	case 1:
		return stores[0], nil
	}
	return stores, nil
}

// OpenOrNop is Open that logs the failure and falls back to Nop, so a
// broken journal never stops a run.
func OpenOrNop(ctx context.Context, o Options, log *zap.Logger) Store {
	s, err := Open(ctx, o)
	if err != nil {
		if log != nil {
			log.Warn("journal disabled", zap.String("type", o.Type), zap.Error(err))
		}
		return Nop{}
	}
	return s
}
