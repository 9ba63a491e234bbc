package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

const (
	maxFramesInFlight = 4
	maxAnisotropy     = 16.0
)

type WindowConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position x axis.
	X uint32 `toml:"x"`
	// Window starting position y axis.
	Y uint32 `toml:"y"`
	// Window starting width.
	Width uint32 `toml:"width"`
	// Window starting height.
	Height uint32 `toml:"height"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	FramesInFlight uint32     `toml:"frames_in_flight"`
	Topology       string     `toml:"topology"`
	Wireframe      bool       `toml:"wireframe"`
	Validation     bool       `toml:"validation"`
	VSync          bool       `toml:"vsync"`
	DiscreteGPU    bool       `toml:"discrete_gpu"`
	ClearColor     [4]float32 `toml:"clear_color"`
	MaxAnisotropy  float32    `toml:"max_anisotropy"`
}

type SceneConfig struct {
	// Asset names, relative to the asset directory, or builtin:<name>.
	Mesh           string  `toml:"mesh"`
	Texture        string  `toml:"texture"`
	VertexShader   string  `toml:"vertex_shader"`
	FragmentShader string  `toml:"fragment_shader"`
	RotationSpeed  float32 `toml:"rotation_speed"`
	FlipTexture    bool    `toml:"flip_texture"`
	// Placement of the mesh in the world.
	Position [3]float32 `toml:"position"`
	Scale    [3]float32 `toml:"scale"`
}

type CameraConfig struct {
	Position [3]float32 `toml:"position"`
	Target   [3]float32 `toml:"target"`
	// Vertical field of view, in degrees.
	FOV  float32 `toml:"fov"`
	Near float32 `toml:"near"`
	Far  float32 `toml:"far"`
	// Units per second for the arrow keys.
	Speed float32 `toml:"speed"`
}

type AssetsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Log      LogConfig      `toml:"log"`
	Renderer RendererConfig `toml:"renderer"`
	Scene    SceneConfig    `toml:"scene"`
	Camera   CameraConfig   `toml:"camera"`
	Assets   AssetsConfig   `toml:"assets"`
}

func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Name:   "Texture Renderer",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Log: LogConfig{Level: "info"},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			Topology:       string(renderer.TopologyTriangleList),
			Validation:     true,
			VSync:          true,
			ClearColor:     [4]float32{0.1, 0.1, 0.15, 1.0},
			MaxAnisotropy:  1.0,
		},
		Scene: SceneConfig{
			Mesh:           "builtin:quad",
			Texture:        "builtin:checker",
			VertexShader:   "shaders/texture.vert.spv",
			FragmentShader: "shaders/texture.frag.spv",
			RotationSpeed:  0.5,
			Scale:          [3]float32{1, 1, 1},
		},
		Camera: CameraConfig{
			Position: [3]float32{0, 0, 3},
			FOV:      45,
			Near:     0.1,
			Far:      100,
			Speed:    2,
		},
		Assets: AssetsConfig{Dir: "assets", Watch: true},
	}
}

// LoadConfig decodes the TOML file at path over the defaults. Keys missing from the
// file keep their default value.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := ParseConfig(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func ParseConfig(raw []byte, cfg *Config) error {
	if err := toml.Unmarshal(raw, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return err
	}
	return cfg.Validate()
}

// Validate clamps numeric settings into their usable range and rejects values that
// cannot be mapped onto the renderer.
func (c *Config) Validate() error {
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if !renderer.Topology(c.Renderer.Topology).Valid() {
		return fmt.Errorf("unknown topology %q", c.Renderer.Topology)
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Scene.Mesh == "" || c.Scene.Texture == "" {
		return fmt.Errorf("scene needs a mesh and a texture")
	}
	if c.Scene.VertexShader == "" || c.Scene.FragmentShader == "" {
		return fmt.Errorf("scene needs a vertex and a fragment shader")
	}

	for _, s := range c.Scene.Scale {
		if s == 0 {
			return fmt.Errorf("scene scale must not be zero, got %v", c.Scene.Scale)
		}
	}

	clampSetting("renderer.frames_in_flight", &c.Renderer.FramesInFlight, 1, maxFramesInFlight)
	clampSetting("renderer.max_anisotropy", &c.Renderer.MaxAnisotropy, 1, maxAnisotropy)
	for i := range c.Renderer.ClearColor {
		c.Renderer.ClearColor[i] = math.Clamp(c.Renderer.ClearColor[i], 0, 1)
	}
	clampSetting("camera.fov", &c.Camera.FOV, 1, 179)
	if c.Camera.Near <= 0 {
		c.Camera.Near = 0.1
	}
	if c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera far plane %f must be beyond the near plane %f", c.Camera.Far, c.Camera.Near)
	}
	return nil
}

func clampSetting[T uint32 | float32](key string, v *T, low, high T) {
	clamped, changed := math.Clamped(*v, low, high)
	if changed {
		core.LogWarn("%s = %v is out of range, using %v", key, *v, clamped)
	}
	*v = clamped
}

func (c *Config) RendererOptions() renderer.Options {
	return renderer.Options{
		FramesInFlight: c.Renderer.FramesInFlight,
		Topology:       renderer.Topology(c.Renderer.Topology),
		Wireframe:      c.Renderer.Wireframe,
		ClearColor:     c.Renderer.ClearColor,
		MaxAnisotropy:  c.Renderer.MaxAnisotropy,
	}
}
