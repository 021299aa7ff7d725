// Package config provides application configuration management.
package config

import (
	"bytes"
	"cmp"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/oszuidwest/zwfm-voicenote/internal/analysis"
	"github.com/oszuidwest/zwfm-voicenote/internal/eventlog"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
	"github.com/oszuidwest/zwfm-voicenote/internal/platform"
	"github.com/oszuidwest/zwfm-voicenote/internal/recorder"
	"github.com/oszuidwest/zwfm-voicenote/internal/util"
	"github.com/oszuidwest/zwfm-voicenote/internal/waveform"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort              = 8080
	DefaultWebUsername          = "admin"
	DefaultWebPassword          = "voicenote"
	DefaultBackend              = platform.BackendProcess
	DefaultTimesliceMs          = 10
	DefaultWaveformFrameMs      = 33
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultLogMaxSizeMB         = 10
	DefaultLogMaxBackups        = 3
	DefaultRecorderChannelCount = media.DefaultChannelCount
)

// EventLogAuto selects the platform default session event log path.
const EventLogAuto = "auto"

// Audio capture backends.
const (
	BackendProcess   = platform.BackendProcess
	BackendPortAudio = platform.BackendPortAudio
)

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	FFmpegPath string `json:"ffmpeg_path" toml:"ffmpeg_path"`                               // Path to FFmpeg binary (empty = use PATH)
	Port       int    `json:"port" toml:"port" validate:"gte=1,lte=65535"`                  // HTTP server port
	Username   string `json:"username" toml:"username" validate:"required,max=100"`         // Login username
	Password   string `json:"password" toml:"password" validate:"required,max=200"`         // Login password
	APIKey     string `json:"api_key" toml:"api_key" validate:"omitempty,alphanum,max=128"` // API key for REST recorder control
}

// AudioConfig holds audio input device settings.
type AudioConfig struct {
	Input   string `json:"input" toml:"input"`                                        // Audio input device identifier
	Backend string `json:"backend" toml:"backend" validate:"oneof=process portaudio"` // Capture backend
}

// RecorderConfig holds the defaults for new recording sessions.
type RecorderConfig struct {
	MimeType           string `json:"mime_type" toml:"mime_type" validate:"omitempty,container"` // Requested container (empty = negotiate)
	AudioBitsPerSecond int    `json:"audio_bits_per_second" toml:"audio_bits_per_second" validate:"gte=8000,lte=512000"`
	EchoCancellation   *bool  `json:"echo_cancellation" toml:"echo_cancellation"`
	AutoGainControl    *bool  `json:"auto_gain_control" toml:"auto_gain_control"`
	NoiseSuppression   *bool  `json:"noise_suppression" toml:"noise_suppression"`
	ChannelCount       int    `json:"channel_count" toml:"channel_count" validate:"oneof=1 2"`
	TimesliceMs        int    `json:"timeslice_ms" toml:"timeslice_ms" validate:"gte=1,lte=10000"` // Chunk interval
}

// WaveformConfig holds the live waveform surface settings.
type WaveformConfig struct {
	Width           int    `json:"width" toml:"width" validate:"gte=16,lte=4096"`
	Height          int    `json:"height" toml:"height" validate:"gte=16,lte=2048"`
	BackgroundColor string `json:"background_color" toml:"background_color" validate:"csscolor"`
	StrokeColor     string `json:"stroke_color" toml:"stroke_color" validate:"csscolor"`
	FFTSize         int    `json:"fft_size" toml:"fft_size" validate:"pow2"`                              // Samples per frame
	FrameIntervalMs int    `json:"frame_interval_ms" toml:"frame_interval_ms" validate:"gte=10,lte=1000"` // Delay between frames
}

// LogConfig holds application and event log settings.
type LogConfig struct {
	Level      string `json:"level" toml:"level" validate:"oneof=debug info warn error"`
	Format     string `json:"format" toml:"format" validate:"oneof=text json"`
	File       string `json:"file" toml:"file"`                                // Rotated log file (empty = stderr only)
	MaxSizeMB  int    `json:"max_size_mb" toml:"max_size_mb" validate:"gte=1"` // Size before rotation
	MaxBackups int    `json:"max_backups" toml:"max_backups" validate:"gte=0"`
	EventLog   string `json:"event_log" toml:"event_log"` // Session event log (empty = disabled, "auto" = platform default)
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System   SystemConfig   `json:"system" toml:"system"`
	Audio    AudioConfig    `json:"audio" toml:"audio"`
	Recorder RecorderConfig `json:"recorder" toml:"recorder"`
	Waveform WaveformConfig `json:"waveform" toml:"waveform"`
	Log      LogConfig      `json:"log" toml:"log"`

	mu       sync.RWMutex
	filePath string
}

// validate is the shared validator for configuration structs.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	mustRegister(v, "pow2", func(fl validator.FieldLevel) bool {
		return analysis.ValidFFTSize(int(fl.Field().Int()))
	})
	mustRegister(v, "csscolor", func(fl validator.FieldLevel) bool {
		_, err := util.ParseColor(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "container", func(fl validator.FieldLevel) bool {
		_, ok := media.LookupContainer(fl.Field().String())
		return ok
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// Validator returns the validator used for configuration, including the
// pow2, csscolor and container rules.
func Validator() *validator.Validate {
	return validate
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	c := &Config{filePath: filePath}
	c.applyDefaults()
	return c
}

// isTOML reports whether the config file uses TOML syntax.
func (c *Config) isTOML() bool {
	return strings.EqualFold(filepath.Ext(c.filePath), ".toml")
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if c.isTOML() {
		err = toml.Unmarshal(data, c)
	} else {
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	return c.validate()
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]error, 0, len(verrs))
	for _, e := range verrs {
		path := strings.TrimPrefix(e.Namespace(), "Config.")
		msgs = append(msgs, fmt.Errorf("invalid %s %v: failed %q", path, e.Value(), e.Tag()))
	}
	return errors.Join(msgs...)
}

func boolPtr(v bool) *bool {
	return &v
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	// System defaults
	c.System.Port = cmp.Or(c.System.Port, DefaultWebPort)
	c.System.Username = cmp.Or(c.System.Username, DefaultWebUsername)
	c.System.Password = cmp.Or(c.System.Password, DefaultWebPassword)
	c.Audio.Backend = cmp.Or(c.Audio.Backend, DefaultBackend)

	// Recorder defaults
	c.Recorder.AudioBitsPerSecond = cmp.Or(c.Recorder.AudioBitsPerSecond, recorder.DefaultAudioBitsPerSecond)
	c.Recorder.ChannelCount = cmp.Or(c.Recorder.ChannelCount, DefaultRecorderChannelCount)
	c.Recorder.TimesliceMs = cmp.Or(c.Recorder.TimesliceMs, DefaultTimesliceMs)
	if c.Recorder.EchoCancellation == nil {
		c.Recorder.EchoCancellation = boolPtr(true)
	}
	if c.Recorder.AutoGainControl == nil {
		c.Recorder.AutoGainControl = boolPtr(true)
	}
	if c.Recorder.NoiseSuppression == nil {
		c.Recorder.NoiseSuppression = boolPtr(true)
	}

	// Waveform defaults
	c.Waveform.Width = cmp.Or(c.Waveform.Width, waveform.DefaultWidth)
	c.Waveform.Height = cmp.Or(c.Waveform.Height, waveform.DefaultHeight)
	c.Waveform.BackgroundColor = cmp.Or(c.Waveform.BackgroundColor, waveform.DefaultBackgroundColor)
	c.Waveform.StrokeColor = cmp.Or(c.Waveform.StrokeColor, waveform.DefaultStrokeColor)
	c.Waveform.FFTSize = cmp.Or(c.Waveform.FFTSize, analysis.DefaultFFTSize)
	c.Waveform.FrameIntervalMs = cmp.Or(c.Waveform.FrameIntervalMs, DefaultWaveformFrameMs)

	// Log defaults
	c.Log.Level = cmp.Or(c.Log.Level, DefaultLogLevel)
	c.Log.Format = cmp.Or(c.Log.Format, DefaultLogFormat)
	c.Log.MaxSizeMB = cmp.Or(c.Log.MaxSizeMB, DefaultLogMaxSizeMB)
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	var data []byte
	if c.isTOML() {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return util.WrapError("marshal config", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return util.WrapError("marshal config", err)
		}
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Getters for individual settings ---

// AudioInput returns the configured audio input device.
func (c *Config) AudioInput() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.Input
}

// FFmpegPath returns the configured FFmpeg binary path.
func (c *Config) FFmpegPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.FFmpegPath
}

// APIKey returns the API key for the REST recorder endpoints.
func (c *Config) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.APIKey
}

// --- Setters for individual settings ---

// SetAudioInput updates the audio input device and saves the configuration.
func (c *Config) SetAudioInput(input string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.Input = input
	return c.saveLocked()
}

// SetAPIKey updates the API key and saves the configuration.
func (c *Config) SetAPIKey(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.System.APIKey = key
	return c.saveLocked()
}

// SetRecorder validates and stores new recorder defaults.
func (c *Config) SetRecorder(rc RecorderConfig) error {
	if err := validate.Struct(rc); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Recorder = rc
	c.applyDefaults()
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	// System
	WebPort     int
	WebUser     string
	WebPassword string
	APIKey      string

	// Audio
	AudioInput   string
	AudioBackend string

	// Recorder
	Recorder RecorderConfig

	// Waveform
	Waveform WaveformConfig

	// Log
	Log LogConfig
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rc := c.Recorder
	rc.EchoCancellation = boolPtr(*c.Recorder.EchoCancellation)
	rc.AutoGainControl = boolPtr(*c.Recorder.AutoGainControl)
	rc.NoiseSuppression = boolPtr(*c.Recorder.NoiseSuppression)

	return Snapshot{
		WebPort:      c.System.Port,
		WebUser:      c.System.Username,
		WebPassword:  c.System.Password,
		APIKey:       c.System.APIKey,
		AudioInput:   c.Audio.Input,
		AudioBackend: c.Audio.Backend,
		Recorder:     rc,
		Waveform:     c.Waveform,
		Log:          c.Log,
	}
}

// RecorderOptions converts the recorder settings to session options.
func (s *Snapshot) RecorderOptions() recorder.Options {
	rc := s.Recorder
	return recorder.Options{
		MimeType:           rc.MimeType,
		AudioBitsPerSecond: rc.AudioBitsPerSecond,
		Constraints: media.Constraints{
			EchoCancellation: rc.EchoCancellation == nil || *rc.EchoCancellation,
			AutoGainControl:  rc.AutoGainControl == nil || *rc.AutoGainControl,
			NoiseSuppression: rc.NoiseSuppression == nil || *rc.NoiseSuppression,
			ChannelCount:     rc.ChannelCount,
		},
		Timeslice: time.Duration(rc.TimesliceMs) * time.Millisecond,
		FFTSize:   s.Waveform.FFTSize,
	}
}

// WaveformOptions converts the waveform settings to renderer options.
func (s *Snapshot) WaveformOptions() waveform.Options {
	return waveform.Options{
		Width:           s.Waveform.Width,
		Height:          s.Waveform.Height,
		BackgroundColor: s.Waveform.BackgroundColor,
		StrokeColor:     s.Waveform.StrokeColor,
	}
}

// FrameInterval returns the delay between waveform frames.
func (s *Snapshot) FrameInterval() time.Duration {
	return time.Duration(s.Waveform.FrameIntervalMs) * time.Millisecond
}

// HasEventLog reports whether a session event log is configured.
func (s *Snapshot) HasEventLog() bool {
	return s.Log.EventLog != ""
}

// EventLogPath resolves the session event log location.
func (s *Snapshot) EventLogPath() string {
	if s.Log.EventLog == EventLogAuto {
		return eventlog.DefaultLogPath(s.WebPort)
	}
	return s.Log.EventLog
}

// --- Utility functions ---

// GenerateAPIKey generates a new random 32-character alphanumeric API key.
func GenerateAPIKey() (string, error) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 32
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		result[i] = chars[n.Int64()]
	}
	return string(result), nil
}
