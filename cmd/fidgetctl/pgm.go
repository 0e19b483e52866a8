package main

import (
	"bufio"
	"fmt"
	"os"
)

// writePGM renders a signed-distance image as a binary-mask PGM (P5):
// non-positive values (inside the shape) are black, everything else white.
func writePGM(path string, width, height int, values []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintf(w, "P5\n%d %d\n255\n", width, height); err != nil {
		return err
	}
	pixels := make([]byte, width*height)
	for i, v := range values {
		if v <= 0 {
			pixels[i] = 0
		} else {
			pixels[i] = 255
		}
	}
	if _, err := w.Write(pixels); err != nil {
		return err
	}
	return w.Flush()
}
