package ocr

import (
	"strconv"
	"strings"
)

// parseTSV folds tesseract's word-level TSV output into line spans.
// Columns: level page_num block_num par_num line_num word_num left top width
// height conf text. Word rows are level 5; conf -1 marks layout rows.
func parseTSV(out []byte) ([]string, []float32, []Box) {
	var (
		spans []string
		confs []float32
		boxes []Box
	)

	var (
		key       string
		words     []string
		confSum   float64
		confCount int
		box       Box
	)
	flush := func() {
		if len(words) == 0 {
			return
		}
		spans = append(spans, strings.Join(words, " "))
		mean := float32(0)
		if confCount > 0 {
			mean = float32(confSum / float64(confCount) / 100.0)
		}
		confs = append(confs, mean)
		boxes = append(boxes, box)
		words, confSum, confCount = nil, 0, 0
	}

	lines := strings.Split(string(out), "\n")
	for i, ln := range lines {
		if i == 0 || ln == "" { // skip header
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" { // not a word row
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}

		lineKey := cols[2] + ":" + cols[3] + ":" + cols[4] // block:par:line
		left := parseNum(cols[6])
		top := parseNum(cols[7])
		width := parseNum(cols[8])
		height := parseNum(cols[9])

		if lineKey != key {
			flush()
			key = lineKey
			box = Box{Left: left, Top: top, Width: width, Height: height}
		} else {
			// grow the line box to cover this word
			right := left + width
			bottom := top + height
			if left < box.Left {
				box.Width += box.Left - left
				box.Left = left
			}
			if top < box.Top {
				box.Height += box.Top - top
				box.Top = top
			}
			if right > box.Left+box.Width {
				box.Width = right - box.Left
			}
			if bottom > box.Top+box.Height {
				box.Height = bottom - box.Top
			}
		}

		words = append(words, text)
		if conf := cols[10]; conf != "" && conf != "-1" {
			if v, err := strconv.ParseFloat(conf, 64); err == nil {
				confSum += v
				confCount++
			}
		}
	}
	flush()
	return spans, confs, boxes
}

func parseNum(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
