package render

// Palette
var (
	RgbBackground = RGB{10, 12, 28} // Deep space
	RgbStarDim    = RGB{90, 90, 110}
	RgbStarBright = RGB{220, 220, 240}

	RgbOceanLit  = RGB{45, 110, 190}
	RgbOceanDark = RGB{8, 22, 52}
	RgbGrid      = RGB{120, 170, 230}
	RgbGlow      = RGB{40, 80, 160}

	RgbStatusText = RGB{0, 0, 0}
	RgbText       = RGB{220, 220, 230}
	RgbTextMuted  = RGB{130, 130, 150}
	RgbPanelBg    = RGB{22, 24, 44}
	RgbLiveBg     = RGB{144, 238, 144} // Light grass green
	RgbHistoryBg  = RGB{135, 206, 250} // Light sky blue
	RgbPausedBg   = RGB{255, 165, 0}   // Orange
	RgbInputBg    = RGB{128, 0, 128}   // Dark purple
)

// ShadeRamp maps brightness to glyph density for the globe surface
var ShadeRamp = []rune(" .:-=+*#")

// ShadeRune picks a ramp glyph for light level l in [0,1]
func ShadeRune(l float64) rune {
	if l <= 0 {
		return ShadeRamp[0]
	}
	i := int(l * float64(len(ShadeRamp)))
	if i >= len(ShadeRamp) {
		i = len(ShadeRamp) - 1
	}
	return ShadeRamp[i]
}
