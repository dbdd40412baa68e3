package ssaloop

import (
	"bufio"
	"bytes"
	"fmt"
	"go/build"
	"go/token"
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/loader"
	gossa "golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Info holds the results of a SSA build for loop analysis.
type Info struct {
	FSet  *token.FileSet  // FileSet for parsed source files.
	Prog  *gossa.Program  // SSA IR for whole program.
	LProg *loader.Program // Loaded program from go/loader.

	BldLog io.Writer // Build log.
}

// Builder builds SSA IR for loop scanning.
type Builder interface {
	Build() (*Info, error)
}

// Configurer is a Builder with configuration methods.
type Configurer interface {
	Builder
	Default() Configurer
	WithBuildLog(l io.Writer, flags int) Configurer
}

// srcReader is a wrapper for source code which can be read through a NewReader.
type srcReader interface {
	NewReader() io.Reader
}

// FileSrc is a set of filenames.
type FileSrc struct {
	Files []string
}

// FromFiles returns a non-nil Configurer from a slice of filenames.
func FromFiles(files []string) Configurer {
	return newConfig(&FileSrc{Files: files})
}

// Reader returns an io.Reader for file[i].
func (s *FileSrc) Reader(i int) io.Reader {
	if i < len(s.Files) {
		f, err := os.Open(s.Files[i])
		defer f.Close()
		if err != nil {
			log.Fatal(errors.Wrapf(err, "failed to read from file: %s", s.Files[i]))
		}
		return bufio.NewReader(f)
	}
	return nil
}

// NewReader returns an io.Reader for reading all files.
func (s *FileSrc) NewReader() io.Reader {
	var rds []io.Reader
	for i := range s.Files {
		rds = append(rds, s.Reader(i))
	}
	return io.MultiReader(rds...)
}

// CachedSrc is source file from a reader.
type CachedSrc struct {
	cached []byte
}

// FromReader returns a non-nil Configurer for a reader.
// This is typically used for testing or building a temporary file.
func FromReader(r io.Reader) Configurer {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to read from reader"))
	}
	return newConfig(&CachedSrc{cached: b})
}

// NewReader returns a reader for reading the string content.
func (s *CachedSrc) NewReader() io.Reader {
	return bytes.NewReader(s.cached)
}

// Config represents a build configuration.
type Config struct {
	bldLog    io.Writer // Build log.
	bldLFlags int       // Build log flags.

	src srcReader // src points to the program source.
}

func newConfig(src srcReader) *Config {
	return &Config{
		bldLog:    ioutil.Discard,
		bldLFlags: log.LstdFlags,
		src:       src,
	}
}

// Default returns a default configuration for loop scanning.
func (c *Config) Default() Configurer {
	return c
}

// WithBuildLog adds build log to config.
func (c *Config) WithBuildLog(l io.Writer, flags int) Configurer {
	c.bldLog = l
	c.bldLFlags = flags
	return c
}

func (c *Config) Build() (*Info, error) {
	var lconf = loader.Config{Build: &build.Default}
	bldLog := log.New(c.bldLog, "ssabuild: ", c.bldLFlags)

	switch src := c.src.(type) {
	case *FileSrc:
		args, err := lconf.FromArgs(src.Files, false /* No tests */)
		if err != nil {
			return nil, err
		}
		if len(args) > 0 {
			return nil, fmt.Errorf("surplus arguments: %q", args)
		}
	default:
		os.Chdir(os.TempDir())
		parsed, err := lconf.ParseFile("tmp", src.NewReader())
		if err != nil {
			return nil, err
		}
		lconf.CreateFromFiles("", parsed)
	}

	// Load, parse and type-check program.
	lprog, err := lconf.Load()
	if err != nil {
		return nil, err
	}
	bldLog.Print("Program loaded and type checked")

	prog := ssautil.CreateProgram(lprog, gossa.GlobalDebug|gossa.BareInits)
	prog.Build()

	return &Info{
		FSet:   lprog.Fset,
		Prog:   prog,
		LProg:  lprog,
		BldLog: c.bldLog,
	}, nil
}
