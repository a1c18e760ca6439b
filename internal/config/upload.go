package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const defaultUploadMaxBytes int64 = 50 << 20

// UploadPolicy is the content-type allow-list and size ceiling applied to media uploads.
type UploadPolicy struct {
	AllowedContentTypes []string `mapstructure:"allowedContentTypes"`
	MaxBytes            int64    `mapstructure:"maxBytes"`
}

func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		AllowedContentTypes: []string{"audio/mpeg", "audio/wav", "video/mp4"},
		MaxBytes:            defaultUploadMaxBytes,
	}
}

type UploadPolicyHolder struct {
	current atomic.Value // holds UploadPolicy
}

// NewStaticUploadPolicyHolder returns a holder that never reloads.
func NewStaticUploadPolicyHolder(policy UploadPolicy) *UploadPolicyHolder {
	holder := &UploadPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

// NewUploadPolicyHolder reads upload.yml and keeps it current while the file changes.
func NewUploadPolicyHolder(cfg Config) (*UploadPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("upload")
	v.SetConfigType("yml")
	if path := strings.TrimSpace(cfg.Storage.UploadPolicyPath); path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("/etc/pitchdeck")

	v.SetEnvPrefix("PITCHDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultUploadPolicy()
	v.SetDefault("upload.allowedContentTypes", defaults.AllowedContentTypes)
	v.SetDefault("upload.maxBytes", defaults.MaxBytes)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	policy, err := decodeUploadPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticUploadPolicyHolder(policy)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeUploadPolicy(v)
		if err != nil {
			log.Printf("[upload-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[upload-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *UploadPolicyHolder) Get() UploadPolicy {
	if h == nil {
		return DefaultUploadPolicy()
	}
	policy, ok := h.current.Load().(UploadPolicy)
	if !ok {
		return DefaultUploadPolicy()
	}
	return policy
}

func decodeUploadPolicy(v *viper.Viper) (UploadPolicy, error) {
	var policy UploadPolicy
	if err := v.UnmarshalKey("upload", &policy); err != nil {
		return UploadPolicy{}, err
	}
	if err := validateUploadPolicy(policy); err != nil {
		return UploadPolicy{}, err
	}
	return policy, nil
}

func validateUploadPolicy(policy UploadPolicy) error {
	if len(policy.AllowedContentTypes) == 0 {
		return errors.New("upload.allowedContentTypes cannot be empty")
	}
	if policy.MaxBytes <= 0 {
		return errors.New("upload.maxBytes must be positive")
	}
	return nil
}
