package routeguard

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/talentbay/internal/authsession"
	"github.com/smallbiznis/talentbay/internal/config"
	"github.com/smallbiznis/talentbay/pkg/telemetry"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const policyKey = "guard"

// Holder serves the current compiled policy and swaps it when routes.yml
// changes on disk. An invalid reload is logged and the previous policy stays.
//
// viper is not safe for concurrent use, so every read of v happens under mu.
type Holder struct {
	current atomic.Pointer[Compiled]
	mu      sync.Mutex
	v       *viper.Viper
	log     *zap.Logger
	metrics *telemetry.Metrics

	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  sync.Once
}

// LoadPolicy reads the route policy. With an explicit path the file must
// exist; otherwise routes.yml is searched for and the built-in policy is used
// when none is found. The returned viper is nil in that case.
func LoadPolicy(path string) (Policy, *viper.Viper, error) {
	v := viper.New()
	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("routes")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/talentbay")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return DefaultPolicy(), nil, nil
		}
		return Policy{}, nil, err
	}

	policy, err := decodePolicy(v)
	if err != nil {
		return Policy{}, nil, err
	}
	return policy, v, nil
}

func decodePolicy(v *viper.Viper) (Policy, error) {
	var p Policy
	if err := v.UnmarshalKey(policyKey, &p); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func NewHolder(cfg config.Config, log *zap.Logger, metrics *telemetry.Metrics) (*Holder, error) {
	h, err := loadHolder(cfg.Guard.PolicyPath, log, metrics)
	if err != nil {
		return nil, err
	}
	if h.v != nil {
		if err := h.watch(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// watch reloads the policy whenever its file is written or replaced. The
// directory is watched so editors that save by rename are seen too.
func (h *Holder) watch() error {
	h.mu.Lock()
	file := filepath.Clean(h.v.ConfigFileUsed())
	h.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		_ = watcher.Close()
		return err
	}
	h.watcher = watcher
	h.done = make(chan struct{})

	go func() {
		for {
			select {
			case <-h.done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != file || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				_ = h.Reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				h.log.Warn("route policy watch error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops watching the policy file.
func (h *Holder) Close() error {
	if h.watcher == nil {
		return nil
	}
	var err error
	h.closed.Do(func() {
		close(h.done)
		err = h.watcher.Close()
	})
	return err
}

func loadHolder(path string, log *zap.Logger, metrics *telemetry.Metrics) (*Holder, error) {
	log = log.Named("routeguard")

	policy, v, err := LoadPolicy(path)
	if err != nil {
		return nil, err
	}
	compiled, err := policy.Compile()
	if err != nil {
		return nil, err
	}

	h := &Holder{v: v, log: log, metrics: metrics}
	h.current.Store(compiled)

	if v == nil {
		log.Info("no routes file found, using built-in policy")
	} else {
		log.Info("route policy loaded", zap.String("file", v.ConfigFileUsed()), zap.Int("routes", len(compiled.Table.routes)))
	}
	return h, nil
}

// NewStaticHolder serves a fixed policy without watching any file.
func NewStaticHolder(compiled *Compiled, log *zap.Logger, metrics *telemetry.Metrics) *Holder {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Holder{log: log, metrics: metrics}
	h.current.Store(compiled)
	return h
}

func (h *Holder) Current() *Compiled {
	return h.current.Load()
}

// Reload re-reads the policy file and applies it. On failure the running
// policy is kept and the error returned.
func (h *Holder) Reload() error {
	if h.v == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.v.ReadInConfig(); err != nil {
		h.rejected("read", err)
		return err
	}
	return h.applyLocked()
}

func (h *Holder) applyLocked() error {
	policy, err := decodePolicy(h.v)
	if err != nil {
		h.rejected("decode", err)
		return err
	}
	compiled, err := policy.Compile()
	if err != nil {
		h.rejected("validate", err)
		return err
	}

	h.current.Store(compiled)
	h.metrics.RecordPolicyReload("applied")
	h.log.Info("route policy reloaded", zap.Int("routes", len(compiled.Table.routes)))
	return nil
}

func (h *Holder) rejected(stage string, err error) {
	h.metrics.RecordPolicyReload("rejected")
	h.log.Warn("route policy reload ignored", zap.String("stage", stage), zap.Error(err))
}

// Evaluate resolves path against the current policy and decides for view.
func (h *Holder) Evaluate(view authsession.View, path, requestURI string) (Decision, Requirement) {
	compiled := h.Current()
	req := compiled.Table.Resolve(path)
	decision := compiled.Guard.Decide(view, req, requestURI)
	h.metrics.RecordGuardDecision(string(decision.Kind), string(req.Kind))
	return decision, req
}
