// Package awsboot loads the shared AWS configuration on first use and hands
// out the service clients the CLI needs. Commands that never touch AWS never
// load credentials.
package awsboot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// Loader builds an aws.Config. Tests replace it.
type Loader func(ctx context.Context) (aws.Config, error)

// DefaultLoader uses the SDK's default credential chain.
func DefaultLoader(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// Clients lazily loads AWS config and caches the clients built from it.
type Clients struct {
	load Loader

	once sync.Once
	cfg  aws.Config
	err  error

	mu          sync.Mutex
	ssm         *ssm.Client
	s3          *s3.Client
	dynamo      *dynamodb.Client
	eventbridge *eventbridge.Client
}

// New returns Clients that load config with load, or DefaultLoader when nil.
func New(load Loader) *Clients {
	if load == nil {
		load = DefaultLoader
	}
	return &Clients{load: load}
}

// Config loads the AWS config once and returns it.
func (c *Clients) Config(ctx context.Context) (aws.Config, error) {
	c.once.Do(func() {
		start := time.Now()
		c.cfg, c.err = c.load(ctx)
		if c.err != nil {
			c.err = fmt.Errorf("failed to load AWS config: %w", c.err)
			return
		}
		log.Debug().
			Str("region", c.cfg.Region).
			Dur("elapsed", time.Since(start)).
			Msg("AWS config loaded")
	})
	return c.cfg, c.err
}

// SSM returns the Parameter Store client.
func (c *Clients) SSM(ctx context.Context) (*ssm.Client, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ssm == nil {
		c.ssm = ssm.NewFromConfig(cfg)
	}
	return c.ssm, nil
}

// S3 returns the S3 client.
func (c *Clients) S3(ctx context.Context) (*s3.Client, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s3 == nil {
		c.s3 = s3.NewFromConfig(cfg)
	}
	return c.s3, nil
}

// Presigner returns a presign client sharing the S3 client.
func (c *Clients) Presigner(ctx context.Context) (*s3.PresignClient, error) {
	client, err := c.S3(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewPresignClient(client), nil
}

// DynamoDB returns the DynamoDB client.
func (c *Clients) DynamoDB(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dynamo == nil {
		c.dynamo = dynamodb.NewFromConfig(cfg)
	}
	return c.dynamo, nil
}

// EventBridge returns the EventBridge client.
func (c *Clients) EventBridge(ctx context.Context) (*eventbridge.Client, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eventbridge == nil {
		c.eventbridge = eventbridge.NewFromConfig(cfg)
	}
	return c.eventbridge, nil
}
