package canvas

import (
	"fmt"
	"io"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/unklstewy/santa-scope/pkg/scene"
)

// WriteSVG renders a scene as a standalone SVG document.
func WriteSVG(w io.Writer, sc scene.Scene, width, height int) {
	canvas := svg.New(w)
	canvas.Start(width, height)

	canvas.Def()
	canvas.Filter("glow")
	canvas.FeGaussianBlur(svg.Filterspec{In: "SourceGraphic", Result: "blur"}, 2.5, 2.5)
	canvas.FeMerge([]string{"blur", "SourceGraphic"})
	canvas.Fend()
	canvas.DefEnd()

	canvas.Rect(0, 0, width, height, "fill:#020617")
	canvas.Circle(round(sc.Center.X), round(sc.Center.Y), round(sc.Radius), fill(scene.OceanStyle))

	if len(sc.Land.Fills) > 0 {
		canvas.Path(fillPath(sc.Land.Fills), fmt.Sprintf("fill:%s;fill-rule:evenodd;stroke:none", scene.LandStyle.Fill))
	}
	for _, p := range sc.Land.Paths {
		xs, ys := points(p)
		canvas.Polyline(xs, ys, stroke(scene.LandStyle, false))
	}
	for _, p := range sc.Future.Paths {
		xs, ys := points(p)
		canvas.Polyline(xs, ys, stroke(sc.Future.Style, false))
	}
	for _, p := range sc.Visited.Paths {
		xs, ys := points(p)
		canvas.Polyline(xs, ys, stroke(sc.Visited.Style, true), `filter="url(#glow)"`)
	}

	m := sc.Marker
	opacity := fmt.Sprintf("opacity:%.2f", m.Opacity)
	canvas.Group(`class="marker"`, `style="`+opacity+`"`)
	mx, my := round(m.Position.X), round(m.Position.Y)
	canvas.Circle(mx, my, round(m.Pulse.Radius), fmt.Sprintf("fill:none;stroke:%s;stroke-width:%.2f;opacity:%.2f",
		scene.PulseStyle.Color, m.Pulse.StrokeWidth, m.Pulse.Opacity))
	canvas.Circle(mx, my, 6, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%.1f",
		scene.MarkerStyle.Fill, scene.MarkerStyle.Color, scene.MarkerStyle.Width))
	canvas.Text(mx, my-12, m.Label, "text-anchor:middle;font-size:20px")
	canvas.Gend()

	canvas.End()
}

func points(p scene.Path) ([]int, []int) {
	xs := make([]int, len(p))
	ys := make([]int, len(p))
	for i, pt := range p {
		xs[i], ys[i] = round(pt.X), round(pt.Y)
	}
	return xs, ys
}

// fillPath joins closed outlines into one path so inner rings cut holes
// under the even-odd rule.
func fillPath(fills []scene.Path) string {
	var sb strings.Builder
	for _, p := range fills {
		if len(p) < 3 {
			continue
		}
		for i, pt := range p {
			cmd := "L"
			if i == 0 {
				cmd = "M"
			}
			fmt.Fprintf(&sb, "%s%d %d ", cmd, round(pt.X), round(pt.Y))
		}
		sb.WriteString("Z ")
	}
	return strings.TrimSpace(sb.String())
}

func fill(s scene.Style) string {
	return fmt.Sprintf("fill:%s;stroke:none", s.Fill)
}

func stroke(s scene.Style, roundCaps bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fill:none;stroke:%s;stroke-width:%.1f;opacity:%.2f", s.Color, s.Width, s.Opacity)
	if len(s.Dash) > 0 {
		parts := make([]string, len(s.Dash))
		for i, d := range s.Dash {
			parts[i] = fmt.Sprintf("%g", d)
		}
		fmt.Fprintf(&sb, ";stroke-dasharray:%s", strings.Join(parts, ","))
	}
	if roundCaps {
		sb.WriteString(";stroke-linecap:round")
	}
	return sb.String()
}
