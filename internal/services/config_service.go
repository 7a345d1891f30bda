package services

import (
	"sync"

	"tallyd/internal/structures"
)

// Feature toggle names accepted by SetGuildFeature.
const (
	FeatureCallTracking  = "call_tracking"
	FeatureSpamDetection = "spam_detection"
	FeatureEmojiTracking = "emoji_tracking"
)

// GuildConfig is the per-guild toggle set resolved for every event.
type GuildConfig struct {
	CallTracking  bool `json:"call_tracking"`
	SpamDetection bool `json:"spam_detection"`
	EmojiTracking bool `json:"emoji_tracking"`
}

type ConfigServiceInterface interface {
	GuildConfig(guildID string) GuildConfig
	SetGuildFeature(guildID, feature string, enabled bool) bool
	IsOptedOut(userID string) bool
	SetOptOut(userID string, optOut bool)
}

// ConfigService keeps guild toggles and user opt-out flags. It is a
// read-mostly collaborator of the engine: changes apply to subsequently
// processed events only, never retroactively.
type ConfigService struct {
	mu       sync.RWMutex
	defaults GuildConfig
	guilds   map[string]GuildConfig
	optedOut map[string]struct{}
}

func NewConfigService(conf *structures.Config) ConfigServiceInterface {
	return &ConfigService{
		defaults: GuildConfig{
			CallTracking:  conf.Tracking.CallTracking,
			SpamDetection: conf.Tracking.SpamDetection,
			EmojiTracking: conf.Tracking.EmojiTracking,
		},
		guilds:   make(map[string]GuildConfig),
		optedOut: make(map[string]struct{}),
	}
}

func (cs *ConfigService) GuildConfig(guildID string) GuildConfig {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cfg, ok := cs.guilds[guildID]; ok {
		return cfg
	}
	return cs.defaults
}

func (cs *ConfigService) SetGuildFeature(guildID, feature string, enabled bool) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cfg, ok := cs.guilds[guildID]
	if !ok {
		cfg = cs.defaults
	}
	switch feature {
	case FeatureCallTracking:
		cfg.CallTracking = enabled
	case FeatureSpamDetection:
		cfg.SpamDetection = enabled
	case FeatureEmojiTracking:
		cfg.EmojiTracking = enabled
	default:
		return false
	}
	cs.guilds[guildID] = cfg
	return true
}

func (cs *ConfigService) IsOptedOut(userID string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, ok := cs.optedOut[userID]
	return ok
}

func (cs *ConfigService) SetOptOut(userID string, optOut bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if optOut {
		cs.optedOut[userID] = struct{}{}
	} else {
		delete(cs.optedOut, userID)
	}
}
