// Package app wires the services shared by every request: the lazily built
// Drive integration and the data composed into every rendered view
package app

import (
	"context"
	"io"
	"sync"

	"github.com/shindakun/diuportal/internal/config"
	"github.com/shindakun/diuportal/internal/drive"
	"go.uber.org/zap"
)

// Materials is the file store behind the course materials page
type Materials interface {
	ListFiles(ctx context.Context) ([]drive.File, error)
	Upload(ctx context.Context, name, mimeType string, content io.Reader) (*drive.File, error)
}

// Container holds long-lived services
type Container struct {
	cfg    *config.Config
	logger *zap.Logger

	driveOnce  sync.Once
	drive      Materials
	buildDrive func() Materials
}

// Register creates the container. Nothing is constructed yet; services are
// built on first use
func Register(cfg *config.Config, logger *zap.Logger) *Container {
	c := &Container{cfg: cfg, logger: logger}
	c.buildDrive = c.newDrive
	return c
}

// Config returns the application configuration
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Drive returns the Drive integration, building it on the first call. It
// returns nil on every call when no refresh token is configured
func (c *Container) Drive() Materials {
	c.driveOnce.Do(func() {
		c.drive = c.buildDrive()
	})
	return c.drive
}

func (c *Container) newDrive() Materials {
	d := c.cfg.Drive
	if !d.Configured() {
		c.logger.Info("google drive not configured, materials disabled")
		return nil
	}

	// The Drive app may share the web sign-in client
	clientID, clientSecret := d.ClientID, d.ClientSecret
	if clientID == "" {
		clientID = c.cfg.OAuth.Google.ClientID
		clientSecret = c.cfg.OAuth.Google.ClientSecret
	}

	client := drive.New(context.Background(), drive.Options{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: d.RefreshToken,
		FolderID:     d.FolderID,
		Logger:       c.logger,
	})
	c.logger.Info("google drive client created", zap.String("folder_id", d.FolderID))
	return client
}
