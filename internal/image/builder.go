package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/pkg/archive"

	"github.com/probelab-io/probedeploy/internal/logging"
)

// APIClient is the slice of the Docker Engine API the builder needs.
// *client.Client satisfies it.
type APIClient interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImagePush(ctx context.Context, image string, options imagetypes.PushOptions) (io.ReadCloser, error)
	ImageRemove(ctx context.Context, image string, options imagetypes.RemoveOptions) ([]imagetypes.DeleteResponse, error)
	RegistryLogin(ctx context.Context, auth registry.AuthConfig) (registry.AuthenticateOKBody, error)
}

// Builder builds, publishes and cleans up the probe image. The docker
// client is injected; its lifetime is owned by the deploy command.
type Builder struct {
	client APIClient
	plan   *Plan
}

// NewBuilder returns a Builder for the given plan.
func NewBuilder(client APIClient, plan *Plan) *Builder {
	return &Builder{client: client, plan: plan}
}

// Build renders the build files into the application directory, tars it as
// the build context and builds the image.
func (b *Builder) Build(ctx context.Context) error {
	if err := WriteBuildFiles(b.plan); err != nil {
		return err
	}

	tar, err := archive.TarWithOptions(b.plan.AppDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to create build context tar: %w", err)
	}

	logging.Info("building image", "image", b.plan.Image, "context", b.plan.AppDir)
	resp, err := b.client.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:       []string{b.plan.Image},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	if err := drainBuildOutput(resp.Body); err != nil {
		return fmt.Errorf("image build failed: %w", err)
	}
	return nil
}

// Login verifies the registry credentials before pushing.
func (b *Builder) Login(ctx context.Context, auth registry.AuthConfig) error {
	resp, err := b.client.RegistryLogin(ctx, auth)
	if err != nil {
		return fmt.Errorf("registry login failed: %w", err)
	}
	logging.Debug("registry login", "status", resp.Status)
	return nil
}

// Push publishes the built image to the registry.
func (b *Builder) Push(ctx context.Context, auth registry.AuthConfig) error {
	encoded, err := registry.EncodeAuthConfig(auth)
	if err != nil {
		return fmt.Errorf("failed to encode registry auth: %w", err)
	}

	logging.Info("pushing image", "image", b.plan.Image)
	reader, err := b.client.ImagePush(ctx, b.plan.Image, imagetypes.PushOptions{RegistryAuth: encoded})
	if err != nil {
		return fmt.Errorf("failed to push image: %w", err)
	}
	defer reader.Close()

	if err := drainBuildOutput(reader); err != nil {
		return fmt.Errorf("image push failed: %w", err)
	}
	return nil
}

// Remove deletes the local image copy. Best-effort cleanup: the caller
// logs the error and carries on.
func (b *Builder) Remove(ctx context.Context) error {
	_, err := b.client.ImageRemove(ctx, b.plan.Image, imagetypes.RemoveOptions{Force: true})
	if err != nil {
		return fmt.Errorf("failed to remove local image %s: %w", b.plan.Image, err)
	}
	return nil
}

// buildMessage is one JSON message from the engine's build/push stream.
// A non-empty error field means the operation failed even though the HTTP
// call itself succeeded.
type buildMessage struct {
	Stream string `json:"stream"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func drainBuildOutput(r io.Reader) error {
	dec := json.NewDecoder(r)
	for {
		var msg buildMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode engine output: %w", err)
		}
		if msg.Error != "" {
			return errors.New(msg.Error)
		}
		if msg.Stream != "" {
			logging.Debug("docker", "output", msg.Stream)
		}
		if msg.Status != "" {
			logging.Debug("docker", "status", msg.Status)
		}
	}
}
