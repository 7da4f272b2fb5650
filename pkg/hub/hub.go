// Package hub resolves model references to checkpoints. A reference is
// either a path to a local checkpoint file or an OCI artifact reference of
// the form oci://registry/repository[:tag|@digest].
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/absmach/tuner/pkg/model"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const (
	ociScheme  = "oci://"
	defaultTag = "latest"

	ArtifactType = "application/vnd.absmach.tuner.model.v1"
)

var (
	ErrEmptyReference = errors.New("empty model reference")
	ErrNoCheckpoint   = errors.New("no checkpoint layer in artifact")
)

type Config struct {
	Authenticate bool   `env:"AUTHENTICATE" toml:"authenticate"`
	PlainHTTP    bool   `env:"PLAIN_HTTP" toml:"plain_http"`
	Token        string `env:"PAT" toml:"token"`
	Username     string `env:"USERNAME" toml:"username"`
	Password     string `env:"PASSWORD" toml:"password"`
	// CacheDir, when set, keeps pulled artifacts in an OCI image layout.
	CacheDir string `env:"CACHE_DIR" toml:"cache_dir"`
}

func (c Config) Validate() error {
	if !c.Authenticate {
		return nil
	}

	hasToken := c.Token != ""
	hasCredentials := c.Username != "" && c.Password != ""
	if !hasToken && !hasCredentials {
		return errors.New("either PAT or username/password must be provided when authentication is enabled")
	}
	if hasToken && c.Username == "" {
		return errors.New("username is required when using PAT authentication")
	}

	return nil
}

type Hub interface {
	Fetch(ctx context.Context, ref string) (model.Checkpoint, error)
	Push(ctx context.Context, ref string, ckpt model.Checkpoint) error
}

type hub struct {
	cfg Config
}

func New(cfg Config) (Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &hub{cfg: cfg}, nil
}

func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, ociScheme)
}

func (h *hub) Fetch(ctx context.Context, ref string) (model.Checkpoint, error) {
	switch {
	case ref == "":
		return model.Checkpoint{}, ErrEmptyReference
	case !IsRemote(ref):
		return model.LoadCheckpoint(ref)
	}

	repo, tag, err := h.repository(ref)
	if err != nil {
		return model.Checkpoint{}, err
	}

	var src oras.ReadOnlyTarget = repo
	if h.cfg.CacheDir != "" {
		store, err := oci.New(h.cfg.CacheDir)
		if err != nil {
			return model.Checkpoint{}, fmt.Errorf("failed to open cache %s: %w", h.cfg.CacheDir, err)
		}
		if _, err := oras.Copy(ctx, repo, tag, store, tag, oras.DefaultCopyOptions); err != nil {
			return model.Checkpoint{}, fmt.Errorf("failed to pull %s: %w", ref, err)
		}
		src = store
	}

	return fetch(ctx, src, tag)
}

func (h *hub) Push(ctx context.Context, ref string, ckpt model.Checkpoint) error {
	if !IsRemote(ref) {
		return model.SaveCheckpoint(ref, ckpt)
	}

	repo, tag, err := h.repository(ref)
	if err != nil {
		return err
	}

	store := memory.New()
	if err := pack(ctx, store, tag, ckpt); err != nil {
		return err
	}
	if _, err := oras.Copy(ctx, store, tag, repo, tag, oras.DefaultCopyOptions); err != nil {
		return fmt.Errorf("failed to push %s: %w", ref, err)
	}

	return nil
}

func (h *hub) repository(ref string) (*remote.Repository, string, error) {
	parsed, err := registry.ParseReference(strings.TrimPrefix(ref, ociScheme))
	if err != nil {
		return nil, "", fmt.Errorf("invalid model reference %q: %w", ref, err)
	}
	tag := parsed.Reference
	if tag == "" {
		tag = defaultTag
	}

	repo, err := remote.NewRepository(parsed.Registry + "/" + parsed.Repository)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create repository for %s: %w", ref, err)
	}
	repo.PlainHTTP = h.cfg.PlainHTTP
	h.setupAuthentication(repo, parsed.Registry)

	return repo, tag, nil
}

func (h *hub) setupAuthentication(repo *remote.Repository, host string) {
	if !h.cfg.Authenticate {
		return
	}

	var cred auth.Credential
	if h.cfg.Username != "" && h.cfg.Password != "" {
		cred = auth.Credential{
			Username: h.cfg.Username,
			Password: h.cfg.Password,
		}
	} else if h.cfg.Token != "" {
		cred = auth.Credential{
			Username:    h.cfg.Username,
			AccessToken: h.cfg.Token,
		}
	}

	repo.Client = &auth.Client{
		Client:     retry.DefaultClient,
		Cache:      auth.NewCache(),
		Credential: auth.StaticCredential(host, cred),
	}
}

func fetch(ctx context.Context, src oras.ReadOnlyTarget, tag string) (model.Checkpoint, error) {
	desc, err := src.Resolve(ctx, tag)
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("failed to resolve manifest %s: %w", tag, err)
	}

	data, err := content.FetchAll(ctx, src, desc)
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("failed to fetch manifest %s: %w", tag, err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return model.Checkpoint{}, fmt.Errorf("failed to parse manifest %s: %w", tag, err)
	}

	layer, err := checkpointLayer(manifest)
	if err != nil {
		return model.Checkpoint{}, err
	}

	blob, err := content.FetchAll(ctx, src, layer)
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("failed to fetch checkpoint layer: %w", err)
	}

	return model.DecodeCheckpoint(bytes.NewReader(blob))
}

// checkpointLayer picks the layer with the checkpoint media type, falling
// back to the largest layer for artifacts pushed by other tools.
func checkpointLayer(manifest ocispec.Manifest) (ocispec.Descriptor, error) {
	var largest ocispec.Descriptor
	for _, layer := range manifest.Layers {
		if layer.MediaType == model.CheckpointMediaType {
			return layer, nil
		}
		if layer.Size > largest.Size {
			largest = layer
		}
	}
	if largest.Size == 0 {
		return ocispec.Descriptor{}, ErrNoCheckpoint
	}

	return largest, nil
}

func pack(ctx context.Context, store oras.Target, tag string, ckpt model.Checkpoint) error {
	data, err := model.MarshalCheckpoint(ckpt)
	if err != nil {
		return err
	}

	layer := content.NewDescriptorFromBytes(model.CheckpointMediaType, data)
	layer.Annotations = map[string]string{ocispec.AnnotationTitle: model.CheckpointFile}
	if err := store.Push(ctx, layer, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to stage checkpoint: %w", err)
	}

	manifest, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers: []ocispec.Descriptor{layer},
	})
	if err != nil {
		return fmt.Errorf("failed to pack manifest: %w", err)
	}

	return store.Tag(ctx, manifest, tag)
}
