package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
)

// readPGM reads a binary (P5) PGM image with a maxval of at most 255.
// Header comments are skipped.
func readPGM(path string) (*ptv.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic, err := pgmToken(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if magic != "P5" {
		return nil, fmt.Errorf("%s: unsupported PGM magic %q, want P5", path, magic)
	}

	var width, height, maxval int
	for _, dst := range []*int{&width, &height, &maxval} {
		tok, err := pgmToken(r)
		if err != nil {
			return nil, fmt.Errorf("%s: truncated header: %w", path, err)
		}
		if _, err := fmt.Sscanf(tok, "%d", dst); err != nil {
			return nil, fmt.Errorf("%s: bad header field %q", path, tok)
		}
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%s: invalid dimensions %dx%d", path, width, height)
	}
	if maxval <= 0 || maxval > 255 {
		return nil, fmt.Errorf("%s: unsupported maxval %d", path, maxval)
	}

	img := ptv.NewImage(width, height)
	if _, err := io.ReadFull(r, img.Pix); err != nil {
		return nil, fmt.Errorf("%s: truncated pixel data: %w", path, err)
	}
	return img, nil
}

// pgmToken returns the next whitespace-delimited header token, skipping
// '#' comments through end of line. The single whitespace byte after
// the token is consumed, which for the maxval token is the separator
// preceding the pixel data.
func pgmToken(r *bufio.Reader) (string, error) {
	var tok []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(tok) > 0 {
				return string(tok), nil
			}
			return "", err
		}
		switch {
		case b == '#' && len(tok) == 0:
			if _, err := r.ReadString('\n'); err != nil {
				return "", err
			}
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}

// writePGM writes img as a binary PGM, used by tests and debugging
// dumps.
func writePGM(path string, img *ptv.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintf(w, "P5\n%d %d\n255\n", img.Width, img.Height); err != nil {
		return err
	}
	if _, err := w.Write(img.Pix); err != nil {
		return err
	}
	return w.Flush()
}
