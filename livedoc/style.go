package livedoc

// Styles are sparse: an authored override only meaningfully sets the fields
// the designer changed, so every field has a "not overridden" sentinel equal
// to its type default.

type BlendMode string

const (
	// the zero value and "normal" both mean "not overridden"
	BlendModeNormal   BlendMode = "normal"
	BlendModeMultiply BlendMode = "multiply"
	BlendModeScreen   BlendMode = "screen"
	BlendModeOverlay  BlendMode = "overlay"
)

type PositionType string

const (
	PositionRelative PositionType = "relative"
	PositionAbsolute PositionType = "absolute"
)

type NodeStyle struct {
	Background string    `json:"background,omitempty" msgpack:"background"`
	TextColor  string    `json:"text_color,omitempty" msgpack:"text_color"`
	FontSize   float32   `json:"font_size,omitempty" msgpack:"font_size"`
	FontFamily string    `json:"font_family,omitempty" msgpack:"font_family"`
	Opacity    float32   `json:"opacity,omitempty" msgpack:"opacity"`
	BlendMode  BlendMode `json:"blend_mode,omitempty" msgpack:"blend_mode"`

	Position   PositionType `json:"position,omitempty" msgpack:"position"`
	Left       float32      `json:"left,omitempty" msgpack:"left"`
	Top        float32      `json:"top,omitempty" msgpack:"top"`
	Width      float32      `json:"width,omitempty" msgpack:"width"`
	Height     float32      `json:"height,omitempty" msgpack:"height"`
	FlexGrow   float32      `json:"flex_grow,omitempty" msgpack:"flex_grow"`
	FlexShrink float32      `json:"flex_shrink,omitempty" msgpack:"flex_shrink"`
	FlexBasis  float32      `json:"flex_basis,omitempty" msgpack:"flex_basis"`
	ItemSpacing float32     `json:"item_spacing,omitempty" msgpack:"item_spacing"`
}

// MergeStyles shadows each base field with the override's field only when
// the override differs from that field's type default. Merging a style onto
// itself is a no-op.
func MergeStyles(base NodeStyle, override NodeStyle) NodeStyle {
	merged := base
	if override.Background != "" {
		merged.Background = override.Background
	}
	if override.TextColor != "" {
		merged.TextColor = override.TextColor
	}
	if override.FontSize != 0 {
		merged.FontSize = override.FontSize
	}
	if override.FontFamily != "" {
		merged.FontFamily = override.FontFamily
	}
	if override.Opacity != 0 {
		merged.Opacity = override.Opacity
	}
	if override.BlendMode != "" && override.BlendMode != BlendModeNormal {
		merged.BlendMode = override.BlendMode
	}
	if override.Position != "" {
		merged.Position = override.Position
	}
	if override.Left != 0 {
		merged.Left = override.Left
	}
	if override.Top != 0 {
		merged.Top = override.Top
	}
	if override.Width != 0 {
		merged.Width = override.Width
	}
	if override.Height != 0 {
		merged.Height = override.Height
	}
	if override.FlexGrow != 0 {
		merged.FlexGrow = override.FlexGrow
	}
	if override.FlexShrink != 0 {
		merged.FlexShrink = override.FlexShrink
	}
	if override.FlexBasis != 0 {
		merged.FlexBasis = override.FlexBasis
	}
	if override.ItemSpacing != 0 {
		merged.ItemSpacing = override.ItemSpacing
	}
	return merged
}

// the layout-relevant subset sent to the external solver
type LayoutStyle struct {
	Position    PositionType `json:"position,omitempty"`
	Left        float32      `json:"left,omitempty"`
	Top         float32      `json:"top,omitempty"`
	Width       float32      `json:"width,omitempty"`
	Height      float32      `json:"height,omitempty"`
	FlexGrow    float32      `json:"flex_grow,omitempty"`
	FlexShrink  float32      `json:"flex_shrink,omitempty"`
	FlexBasis   float32      `json:"flex_basis,omitempty"`
	ItemSpacing float32      `json:"item_spacing,omitempty"`
}

func (self *NodeStyle) LayoutStyle() LayoutStyle {
	return LayoutStyle{
		Position:    self.Position,
		Left:        self.Left,
		Top:         self.Top,
		Width:       self.Width,
		Height:      self.Height,
		FlexGrow:    self.FlexGrow,
		FlexShrink:  self.FlexShrink,
		FlexBasis:   self.FlexBasis,
		ItemSpacing: self.ItemSpacing,
	}
}
