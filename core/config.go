// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gobuffalo/envy"
	"github.com/gobuffalo/packr"
	"github.com/joho/godotenv"

	"github.com/devblok/vkboot/device"
)

// ErrConfiguration marks malformed configuration values.
var ErrConfiguration = errors.New("invalid configuration")

// Configuration defines everything needed to bootstrap a device
type Configuration struct {
	Instance  InstanceConfiguration
	Window    WindowConfiguration
	Selection SelectionConfiguration
}

// InstanceConfiguration is used to create the Vulkan instance
type InstanceConfiguration struct {
	AppName    string
	EngineName string
	AppVersion device.Version

	// Debug enables the validation layer and debug report callback
	Debug bool

	Layers     []string
	Extensions []string
}

// EnabledLayers returns the layers to request, including the
// validation layer in debug mode.
func (c InstanceConfiguration) EnabledLayers() []string {
	layers := appendUnique(nil, c.Layers...)
	if c.Debug {
		layers = appendUnique(layers, ValidationLayer)
	}
	return layers
}

// EnabledExtensions returns the extensions to request, including the
// debug report extension in debug mode.
func (c InstanceConfiguration) EnabledExtensions() []string {
	extensions := appendUnique(nil, c.Extensions...)
	if c.Debug {
		extensions = appendUnique(extensions, DebugReportExtension)
	}
	return extensions
}

// WindowConfiguration is used by binaries that open a window
type WindowConfiguration struct {
	Width  uint32
	Height uint32
	Title  string
}

// SelectionConfiguration tunes the device requirement filter
type SelectionConfiguration struct {
	MinAPIVersion           device.Version
	MinDeviceLocalMemoryMiB uint64

	// Diagnostics prints the selection report
	Diagnostics bool
}

// Requirements converts the configuration for device.Select. Values
// below device.DefaultRequirements are raised to it; configuration can
// only tighten the filter.
func (c SelectionConfiguration) Requirements() device.Requirements {
	floor := device.DefaultRequirements()
	req := device.Requirements{
		MinAPIVersion:        c.MinAPIVersion,
		MinDeviceLocalMemory: c.MinDeviceLocalMemoryMiB * device.MiB,
	}
	if req.MinAPIVersion < floor.MinAPIVersion {
		req.MinAPIVersion = floor.MinAPIVersion
	}
	if req.MinDeviceLocalMemory < floor.MinDeviceLocalMemory {
		req.MinDeviceLocalMemory = floor.MinDeviceLocalMemory
	}
	return req
}

// Configuration keys, shared by defaults.env and the environment.
const (
	KeyAppName              = "VKBOOT_APP_NAME"
	KeyEngineName           = "VKBOOT_ENGINE_NAME"
	KeyAppVersion           = "VKBOOT_APP_VERSION"
	KeyDebug                = "VKBOOT_DEBUG"
	KeyLayers               = "VKBOOT_LAYERS"
	KeyExtensions           = "VKBOOT_EXTENSIONS"
	KeyWindowWidth          = "VKBOOT_WINDOW_WIDTH"
	KeyWindowHeight         = "VKBOOT_WINDOW_HEIGHT"
	KeyWindowTitle          = "VKBOOT_WINDOW_TITLE"
	KeyMinAPIVersion        = "VKBOOT_MIN_API_VERSION"
	KeyMinDeviceLocalMemory = "VKBOOT_MIN_DEVICE_LOCAL_MEMORY_MIB"
	KeyDiagnostics          = "VKBOOT_DIAGNOSTICS"
)

// StaticResources holds the bundled defaults.
var StaticResources = packr.NewBox("./resources")

const defaultsFile = "defaults.env"

// LoadConfiguration reads the bundled defaults and applies overrides
// from the environment, or a .env file in the working directory.
func LoadConfiguration() (Configuration, error) {
	raw, err := StaticResources.FindString(defaultsFile)
	if err != nil {
		return Configuration{}, errors.Wrap(err, "find bundled defaults")
	}
	defaults, err := godotenv.Parse(strings.NewReader(raw))
	if err != nil {
		return Configuration{}, errors.Mark(errors.Wrap(err, "parse bundled defaults"), ErrConfiguration)
	}
	return ParseConfiguration(defaults, envy.Get)
}

// ParseConfiguration builds a Configuration from defaults, with lookup
// giving each key a chance to override its default.
func ParseConfiguration(defaults map[string]string, lookup func(key, fallback string) string) (Configuration, error) {
	p := parser{defaults: defaults, lookup: lookup}
	cfg := Configuration{
		Instance: InstanceConfiguration{
			AppName:    p.string(KeyAppName),
			EngineName: p.string(KeyEngineName),
			AppVersion: p.version(KeyAppVersion),
			Debug:      p.bool(KeyDebug),
			Layers:     p.list(KeyLayers),
			Extensions: p.list(KeyExtensions),
		},
		Window: WindowConfiguration{
			Width:  uint32(p.uint(KeyWindowWidth, 32)),
			Height: uint32(p.uint(KeyWindowHeight, 32)),
			Title:  p.string(KeyWindowTitle),
		},
		Selection: SelectionConfiguration{
			MinAPIVersion:           p.version(KeyMinAPIVersion),
			MinDeviceLocalMemoryMiB: p.uint(KeyMinDeviceLocalMemory, 44),
			Diagnostics:             p.bool(KeyDiagnostics),
		},
	}
	if p.err != nil {
		return Configuration{}, p.err
	}

	floor := device.DefaultRequirements()
	if v := cfg.Selection.MinAPIVersion; v < floor.MinAPIVersion {
		return Configuration{}, errors.Mark(errors.Newf("%s=%s is below %s", KeyMinAPIVersion, v, floor.MinAPIVersion), ErrConfiguration)
	}
	if mib := cfg.Selection.MinDeviceLocalMemoryMiB; mib*device.MiB < floor.MinDeviceLocalMemory {
		return Configuration{}, errors.Mark(errors.Newf("%s=%d is below %d", KeyMinDeviceLocalMemory, mib, floor.MinDeviceLocalMemory/device.MiB), ErrConfiguration)
	}
	return cfg, nil
}

type parser struct {
	defaults map[string]string
	lookup   func(key, fallback string) string
	err      error
}

func (p *parser) string(key string) string {
	return strings.TrimSpace(p.lookup(key, p.defaults[key]))
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = errors.Mark(errors.Wrapf(err, "%s=%q", key, value), ErrConfiguration)
	}
}

func (p *parser) bool(key string) bool {
	v := p.string(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
	}
	return b
}

func (p *parser) uint(key string, bits int) uint64 {
	v := p.string(key)
	n, err := strconv.ParseUint(v, 10, bits)
	if err != nil {
		p.fail(key, v, err)
	}
	return n
}

func (p *parser) list(key string) []string {
	var out []string
	for _, s := range strings.Split(p.string(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *parser) version(key string) device.Version {
	v := p.string(key)
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		p.fail(key, v, errors.New("want major.minor.patch"))
		return 0
	}
	var nums [3]uint32
	limits := [3]int{10, 10, 12}
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, limits[i])
		if err != nil {
			p.fail(key, v, err)
			return 0
		}
		nums[i] = uint32(n)
	}
	return device.MakeVersion(nums[0], nums[1], nums[2])
}
