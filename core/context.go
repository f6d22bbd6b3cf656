// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/vkboot/device"
)

type contextOptions struct {
	log      logrus.FieldLogger
	procAddr unsafe.Pointer
}

// ContextOption configures NewContext.
type ContextOption func(*contextOptions)

// WithLogger sets the logger used by the context and everything it creates.
func WithLogger(l logrus.FieldLogger) ContextOption {
	return func(o *contextOptions) {
		o.log = l
	}
}

// WithProcAddr loads Vulkan through the given vkGetInstanceProcAddr, as
// handed out by a window library. Without it the system loader is used.
func WithProcAddr(p unsafe.Pointer) ContextOption {
	return func(o *contextOptions) {
		o.procAddr = p
	}
}

// Context owns the Vulkan instance and every object created from it.
// There is no global state; everything goes through a Context and is
// released by Close in reverse creation order.
type Context struct {
	cfg       Configuration
	log       logrus.FieldLogger
	resources *Resources

	instance   vk.Instance
	surface    vk.Surface
	hasSurface bool
	device     *Device
}

// NewContext loads Vulkan and creates the instance described by cfg.
// Requested layers and extensions are verified first and reported with
// device.ErrExtensionOrLayerMissing when unavailable.
func NewContext(cfg Configuration, opts ...ContextOption) (*Context, error) {
	o := contextOptions{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "load vulkan library")
		}
	} else {
		vk.SetGetInstanceProcAddr(o.procAddr)
	}
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}

	layers := cfg.Instance.EnabledLayers()
	extensions := cfg.Instance.EnabledExtensions()
	if err := checkInstanceSupport(layers, extensions); err != nil {
		return nil, err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 0, 0),
		ApplicationVersion: uint32(cfg.Instance.AppVersion),
		PApplicationName:   safeString(cfg.Instance.AppName),
		PEngineName:        safeString(cfg.Instance.EngineName),
	}
	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}

	var instance vk.Instance
	if err := vkError(vk.CreateInstance(&instanceInfo, nil, &instance), "vk.CreateInstance()"); err != nil {
		return nil, err
	}
	vk.InitInstance(instance)

	c := &Context{
		cfg:      cfg,
		log:      o.log,
		instance: instance,
	}
	c.resources = newResources(c, o.log)
	c.resources.Push("instance", instance)

	if cfg.Instance.Debug {
		if err := c.installDebugReport(); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.log.WithFields(logrus.Fields{
		"layers":     layers,
		"extensions": extensions,
	}).Info("instance created")
	return c, nil
}

func checkInstanceSupport(layers, extensions []string) error {
	var count uint32
	if err := vkError(vk.EnumerateInstanceExtensionProperties("", &count, nil), "vk.EnumerateInstanceExtensionProperties()"); err != nil {
		return err
	}
	extProps := make([]vk.ExtensionProperties, count)
	if err := vkError(vk.EnumerateInstanceExtensionProperties("", &count, extProps), "vk.EnumerateInstanceExtensionProperties()"); err != nil {
		return err
	}
	available := make([]string, 0, len(extProps))
	for _, ext := range extProps {
		ext.Deref()
		available = append(available, vk.ToString(ext.ExtensionName[:]))
	}
	missingExtensions := missing(extensions, available)

	count = 0
	if err := vkError(vk.EnumerateInstanceLayerProperties(&count, nil), "vk.EnumerateInstanceLayerProperties()"); err != nil {
		return err
	}
	layerProps := make([]vk.LayerProperties, count)
	if err := vkError(vk.EnumerateInstanceLayerProperties(&count, layerProps), "vk.EnumerateInstanceLayerProperties()"); err != nil {
		return err
	}
	available = available[:0]
	for _, layer := range layerProps {
		layer.Deref()
		available = append(available, vk.ToString(layer.LayerName[:]))
	}
	missingLayers := missing(layers, available)

	return missingError(missingExtensions, missingLayers)
}

func missingError(extensions, layers []string) error {
	if len(extensions) == 0 && len(layers) == 0 {
		return nil
	}
	return errors.Wrapf(device.ErrExtensionOrLayerMissing, "extensions %q, layers %q", extensions, layers)
}

// debugLevel maps debug report severity to a log level.
func debugLevel(flags vk.DebugReportFlags) logrus.Level {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return logrus.ErrorLevel
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		return logrus.WarnLevel
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func (c *Context) debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	entry := c.log.WithFields(logrus.Fields{
		"layer": pLayerPrefix,
		"code":  messageCode,
	})
	switch debugLevel(flags) {
	case logrus.ErrorLevel:
		entry.Error(pMessage)
	case logrus.WarnLevel:
		entry.Warn(pMessage)
	case logrus.DebugLevel:
		entry.Debug(pMessage)
	default:
		entry.Info(pMessage)
	}
	return vk.Bool32(vk.False)
}

func (c *Context) installDebugReport() error {
	info := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit | vk.DebugReportInformationBit),
		PfnCallback: c.debugReport,
	}
	var callback vk.DebugReportCallback
	if err := vkError(vk.CreateDebugReportCallback(c.instance, &info, nil, &callback), "vk.CreateDebugReportCallback()"); err != nil {
		return err
	}
	c.resources.Push("debug report callback", callback)
	return nil
}

// Instance returns the Vulkan instance, for window libraries that create
// surfaces from it.
func (c *Context) Instance() vk.Instance {
	return c.instance
}

// Configuration returns the configuration the context was created with.
func (c *Context) Configuration() Configuration {
	return c.cfg
}

// AdoptSurface takes ownership of a surface created by the window layer.
// Presentation support is enumerated against it, and it is destroyed
// before the instance.
func (c *Context) AdoptSurface(ptr unsafe.Pointer) error {
	if c.hasSurface {
		return errors.New("surface already adopted")
	}
	if ptr == nil {
		return errors.New("nil surface")
	}
	surface := vk.SurfaceFromPointer(uintptr(ptr))
	c.surface = surface
	c.hasSurface = true
	c.resources.Push("surface", surface)
	return nil
}

// Surface returns the adopted surface, or a valid but empty one.
func (c *Context) Surface() vk.Surface {
	if !c.hasSurface {
		return vk.NullSurface
	}
	return c.surface
}

// Select enumerates devices and runs device.Select with the configured
// requirements. opts are applied after the configured ones.
func (c *Context) Select(opts ...device.Option) (*device.Selected, *device.Report, error) {
	all := append([]device.Option{
		device.WithRequirements(c.cfg.Selection.Requirements()),
		device.WithLogger(c.log),
	}, opts...)
	return device.Select(c, all...)
}

// Resources lists the owned objects in creation order.
func (c *Context) Resources() []string {
	return c.resources.Names()
}

// release destroys one object owned by the context. The instance is
// pushed first, so it is still alive for everything created from it.
func (c *Context) release(r *Resource) {
	switch v := r.Value.(type) {
	case vk.Device:
		vk.DestroyDevice(v, nil)
	case vk.Surface:
		vk.DestroySurface(c.instance, v, nil)
	case vk.DebugReportCallback:
		vk.DestroyDebugReportCallback(c.instance, v, nil)
	case vk.Instance:
		vk.DestroyInstance(v, nil)
	default:
		c.log.WithField("resource", r.Name).Errorf("cannot release %T", r.Value)
	}
}

// Close releases everything the context owns, newest first.
func (c *Context) Close() {
	c.resources.Close()
	c.device = nil
	c.log.Info("context closed")
}
