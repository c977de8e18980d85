package di

import "github.com/aws/aws-sdk-go-v2/aws"

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithConfig registers a pre-resolved aws.Config in the container instead of
// loading one from the ambient environment. The init flow uses this after
// its interactive credential resolution.
func WithConfig(cfg aws.Config) Option {
	return func(opts *options) {
		opts.cfg = &cfg
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func() *Database { return &Database{} },
//	    func(db *Database) *Service { return &Service{DB: db} },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	cfg       *aws.Config
	providers []any
}
