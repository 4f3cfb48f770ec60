package render

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/pipeline"
)

const panelWidth = 32

// HUD is the text overlay drawn over the globe. The app rebuilds it every frame.
type HUD struct {
	Window    string // e.g. "Viewing: Live"
	Live      bool
	Paused    bool
	Status    string // transient notice, e.g. "demo mode"
	Stats     pipeline.StatsSnapshot
	Feed      []pipeline.FeedItem
	Messages  []mood.Message
	Highlight mood.Kind // button lit after a selection; empty for none
	Editing   bool
	Input     string
	Now       time.Time
}

func (h *HUD) Draw(buf *Buffer) {
	w, ht := buf.Size()
	if w < 20 || ht < 6 {
		return
	}

	h.drawHeader(buf, w)
	if w >= 2*panelWidth+20 {
		h.drawStats(buf, w-panelWidth, 2)
		h.drawMessages(buf, 1, 3, ht-6)
	}
	h.drawButtons(buf, ht-2, w)
	h.drawFooter(buf, ht-1, w)
}

func (h *HUD) drawHeader(buf *Buffer, w int) {
	buf.Text(1, 0, "WORLD MOOD", RgbText, RgbBackground, w-2)

	bg := RgbHistoryBg
	switch {
	case h.Paused:
		bg = RgbPausedBg
	case h.Live:
		bg = RgbLiveBg
	}
	label := " " + h.Window + " "
	if h.Paused {
		label = " PAUSED |" + label
	}
	buf.Text(13, 0, label, RgbStatusText, bg, w-14)

	if h.Status != "" {
		x := 14 + len([]rune(label))
		buf.Text(x, 0, h.Status, RgbTextMuted, RgbBackground, w-x-1)
	}
}

func (h *HUD) drawStats(buf *Buffer, x, y int) {
	buf.Fill(x-1, y-1, panelWidth+1, len(mood.Kinds())+3, RgbPanelBg, 0.85)

	title := "Moods " + strconv.Itoa(h.Stats.Total)
	if h.Stats.Total > 0 {
		title += "  Top: " + h.Stats.Top.Label()
	}
	buf.Text(x, y, title, RgbText, RgbPanelBg, panelWidth-1)

	barMax := panelWidth - 14
	for i, k := range mood.Kinds() {
		row := y + 1 + i
		n := h.Stats.Counts[k]
		color := FromColor(k.Color())
		buf.Text(x, row, fmt.Sprintf("%-9s%3d ", k.Label(), n), RgbText, RgbPanelBg, 13)
		bar := 0
		if h.Stats.Total > 0 {
			bar = n * barMax / h.Stats.Total
		}
		for j := 0; j < bar; j++ {
			buf.Set(x+13+j, row, Cell{Rune: '█', Fg: color, Bg: RgbPanelBg})
		}
	}

	h.drawFeed(buf, x, y+len(mood.Kinds())+2)
}

func (h *HUD) drawFeed(buf *Buffer, x, y int) {
	_, ht := buf.Size()
	room := ht - 3 - y
	if room <= 1 {
		return
	}
	buf.Text(x, y, "Live feed", RgbTextMuted, RgbBackground, panelWidth-1)
	for i, item := range h.Feed {
		if i >= room-1 {
			break
		}
		row := y + 1 + i
		buf.Set(x, row, Cell{Rune: '●', Fg: FromColor(item.Kind.Color()), Bg: RgbBackground})
		line := item.Kind.Label() + "  from " + item.Location.Name
		buf.Text(x+2, row, line, RgbText, RgbBackground, panelWidth-3)
	}
}

func (h *HUD) drawMessages(buf *Buffer, x, y, room int) {
	if len(h.Messages) == 0 || room < 2 {
		return
	}
	buf.Text(x, y, "Messages", RgbTextMuted, RgbBackground, panelWidth-1)
	row := y + 1
	for _, m := range h.Messages {
		if row+1 >= y+room {
			break
		}
		buf.Text(x, row, "\""+m.Text+"\"", RgbText, RgbBackground, panelWidth-1)
		meta := m.Location.Name + " · " + pipeline.TimeAgo(m.Timestamp, h.Now)
		buf.Text(x+1, row+1, meta, RgbTextMuted, RgbBackground, panelWidth-2)
		row += 2
	}
}

func (h *HUD) drawButtons(buf *Buffer, y, w int) {
	if h.Editing {
		prompt := "message> " + h.Input + "_"
		buf.Fill(0, y, w, 1, RgbInputBg, 1)
		buf.Text(1, y, prompt, RgbText, RgbInputBg, w-2)
		return
	}

	x := 1
	for i, k := range mood.Kinds() {
		label := fmt.Sprintf(" %d %s ", i+1, k.Label())
		fg, bg := FromColor(k.Color()), RgbBackground
		if k == h.Highlight {
			fg, bg = RgbStatusText, FromColor(k.Color())
		}
		n := buf.Text(x, y, label, fg, bg, w-x-1)
		if n < len(label) {
			return
		}
		x += n + 1
	}
}

func (h *HUD) drawFooter(buf *Buffer, y, w int) {
	help := "1-8 share mood  [ ] time window  arrows/drag rotate  p pause  m message  q quit"
	if h.Editing {
		help = "enter send  esc cancel"
	}
	buf.Text(1, y, help, RgbTextMuted, RgbBackground, w-2)
}
