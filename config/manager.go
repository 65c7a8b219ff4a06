package config

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigManager loads, watches and distributes configurations.
type ConfigManager interface {
	// LoadConfig reads <name>.yaml from the base path into config,
	// validates it, stores it and starts watching the file.
	LoadConfig(configName string, config Config) error
	// GetConfig returns the stored configuration for name.
	GetConfig(configName string) (Config, error)
	// RegisterValidator attaches an extra validation hook for name.
	RegisterValidator(configName string, validator ValidatorFunc)
	// AddChangeListener registers a hot-reload listener.
	AddChangeListener(listener ConfigChangeListener)
	// SetBasePath changes the directory configs are loaded from.
	SetBasePath(path string)
	// Close stops all file watchers.
	Close() error
}

type configManager struct {
	mu        sync.RWMutex
	configs   map[string]Config
	watchers  map[string]*fsnotify.Watcher
	validator map[string]ValidatorFunc
	listeners []ConfigChangeListener
	basePath  string
}

// NewConfigManager creates a manager rooted at ./configs.
func NewConfigManager() ConfigManager {
	return &configManager{
		configs:   make(map[string]Config),
		watchers:  make(map[string]*fsnotify.Watcher),
		validator: make(map[string]ValidatorFunc),
		basePath:  "./configs",
	}
}

var (
	_instance     ConfigManager
	_instanceOnce sync.Once
)

// GetInstance returns the process-wide manager singleton.
func GetInstance() ConfigManager {
	_instanceOnce.Do(func() {
		_instance = NewConfigManager()
	})
	return _instance
}

func (cm *configManager) SetBasePath(path string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.basePath = path
}

func (cm *configManager) LoadConfig(configName string, config Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Environment variables override file values: LOGGER_LEVEL=debug.
	v.AutomaticEnv()
	v.SetEnvPrefix(strings.ToUpper(configName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s failed: %w", configName, err)
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config %s failed: %w", configName, err)
	}
	if err := cm.validate(configName, config); err != nil {
		return err
	}

	cm.configs[configName] = config

	if err := cm.watchConfigFile(configName, v, config); err != nil {
		return fmt.Errorf("watch config %s failed: %w", configName, err)
	}
	return nil
}

func (cm *configManager) GetConfig(configName string) (Config, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	config, exists := cm.configs[configName]
	if !exists {
		return nil, fmt.Errorf("config %s not found", configName)
	}
	return config, nil
}

func (cm *configManager) RegisterValidator(configName string, validator ValidatorFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.validator[configName] = validator
}

func (cm *configManager) AddChangeListener(listener ConfigChangeListener) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.listeners = append(cm.listeners, listener)
}

func (cm *configManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for name, w := range cm.watchers {
		_ = w.Close()
		delete(cm.watchers, name)
	}
	return nil
}

func (cm *configManager) validate(configName string, config Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("validate config %s failed: %w", configName, err)
	}
	if validator, exists := cm.validator[configName]; exists {
		if err := validator(config); err != nil {
			return fmt.Errorf("validate config %s failed: %w", configName, err)
		}
	}
	return nil
}

// watchConfigFile starts an fsnotify watcher on the loaded file. Reloads
// that fail to parse or validate are discarded; the previous configuration
// stays in effect.
func (cm *configManager) watchConfigFile(configName string, v *viper.Viper, template Config) error {
	if _, exists := cm.watchers[configName]; exists {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(v.ConfigFileUsed()); err != nil {
		_ = watcher.Close()
		return err
	}
	cm.watchers[configName] = watcher

	tmplType := reflect.TypeOf(template)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cm.reload(configName, v, tmplType)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (cm *configManager) reload(configName string, v *viper.Viper, tmplType reflect.Type) {
	if err := v.ReadInConfig(); err != nil {
		return
	}

	// Build a fresh instance of the same concrete type so listeners can
	// compare old and new values.
	newConfig, ok := reflect.New(tmplType.Elem()).Interface().(Config)
	if !ok {
		return
	}
	if err := v.Unmarshal(newConfig); err != nil {
		return
	}

	cm.mu.Lock()
	if err := cm.validate(configName, newConfig); err != nil {
		cm.mu.Unlock()
		return
	}
	oldConfig := cm.configs[configName]
	cm.configs[configName] = newConfig
	listeners := make([]ConfigChangeListener, len(cm.listeners))
	copy(listeners, cm.listeners)
	cm.mu.Unlock()

	for _, l := range listeners {
		if l.GetConfigName() != configName {
			continue
		}
		_ = l.OnConfigChanged(configName, newConfig, oldConfig)
	}
}
