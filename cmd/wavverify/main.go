package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/xaionaro-go/noisecancel/pkg/container"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <file.wav>...\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	if verifyAll(os.Stdout, pflag.Args()) > 0 {
		os.Exit(1)
	}
}

// verifyAll prints the layout of every file and returns the amount of
// files that failed the verification.
func verifyAll(w io.Writer, paths []string) int {
	failed := 0
	for _, path := range paths {
		info, err := container.Verify(path)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n%s is not a valid WAV file.\n\n", err, path)
			failed++
			continue
		}
		fmt.Fprintf(w, "File: %s\n%sFile is a valid WAV file.\n\n", path, info)
	}
	return failed
}
