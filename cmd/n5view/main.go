// Command-line interface to N5 multiscale metadata discovery and a headless
// viewer session.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/metadata"
	"github.com/janelia-flyem/n5viewer/multiscale"
	"github.com/janelia-flyem/n5viewer/n5v"
	"github.com/janelia-flyem/n5viewer/server"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to TOML configuration file.
	configFile = flag.String("config", "", "")

	// Address for http communication; overrides the configuration.
	httpAddress = flag.String("http", "", "")

	// Number of logical CPUs to use.
	useCPU = flag.Int("numcpu", 0, "")
)

const helpMessage = `
n5view finds multiscale images in N5 containers and shows them in a viewer session

Usage: n5view [options] <command>

      -config     =string   TOML configuration file.
      -http       =string   Address for HTTP communication.
      -numcpu     =number   Number of logical CPUs to use.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Containers are referenced by a path or URL: /path/to/data.n5, file://..., gs://..., s3://...

Commands:

	about
	help
	discover <container>
	resolve  <container> <path>
	serve    <container> [path ...]
`

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() {
		fmt.Print(helpMessage)
	}
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *runVerbose {
		n5v.Verbose = true
		n5v.SetLogMode(n5v.DebugMode)
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *useCPU != 0 {
		n5v.NumCPU = *useCPU
	}
	runtime.GOMAXPROCS(n5v.NumCPU)

	if err := DoCommand(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func loadConfig() (*server.Config, error) {
	config := server.DefaultConfig()
	if *configFile != "" {
		var err error
		if config, err = server.LoadConfig(*configFile); err != nil {
			return nil, err
		}
	}
	if *httpAddress != "" {
		config.Server.HTTPAddress = *httpAddress
	}
	if *runVerbose {
		config.Logging.Level = n5v.DebugMode.String()
	}
	config.Logging.SetLogger()
	n5v.Debugf("Logging at level %s\n", n5v.LogMode())
	return config, nil
}

// DoCommand serves as a switchboard for commands.
func DoCommand(args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	defer n5v.Shutdown()

	switch args[0] {
	case "about":
		fmt.Printf("n5view version %s\n", server.Version())
		fmt.Printf("Supported N5 versions: up to %s\n", container.MaxSupportedVersion)
		fmt.Printf("Log level: %s\n", n5v.LogMode())
		fmt.Printf("Metadata conventions: %s, %s, %s, %s\n", metadata.ConventionCosem,
			metadata.ConventionN5Viewer, metadata.ConventionCanonical, metadata.ConventionGeneric)
		return nil
	case "discover":
		if len(args) != 2 {
			return fmt.Errorf("discover needs a container reference")
		}
		return doDiscover(config, args[1])
	case "resolve":
		if len(args) != 3 {
			return fmt.Errorf("resolve needs a container reference and a path")
		}
		return doResolve(config, args[1], args[2])
	case "serve":
		if len(args) < 2 {
			return fmt.Errorf("serve needs a container reference")
		}
		return doServe(config, args[1], args[2:])
	default:
		return fmt.Errorf("unknown command %q; try 'n5view help'", args[0])
	}
}

func doDiscover(config *server.Config, ref string) error {
	s := server.NewService(config)
	defer s.Close()
	root, err := s.Discover(context.Background(), ref)
	if err != nil {
		return err
	}
	return root.Walk(func(node *metadata.Node) error {
		depth := strings.Count(node.Path, "/")
		if node.Path != "" {
			depth++
		}
		line := strings.Repeat("  ", depth) + "/" + node.Path
		if node.Dataset != nil {
			line += fmt.Sprintf("  %v %s (%s)", node.Dataset.Dimensions, node.Dataset.ElementType(),
				humanize.Bytes(node.Dataset.NumBytes()))
		}
		if node.Metadata != nil {
			line += "  [" + server.MetadataKind(node.Metadata) + "]"
		}
		fmt.Println(line)
		return nil
	})
}

func doResolve(config *server.Config, ref, path string) error {
	s := server.NewService(config)
	defer s.Close()
	root, err := s.Discover(context.Background(), ref)
	if err != nil {
		return err
	}
	selection, err := server.Select(root, []string{path})
	if err != nil {
		return err
	}
	groups, err := multiscale.Resolve(selection[0])
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Printf("%q has no spatial metadata\n", path)
		return nil
	}
	for i, group := range groups {
		fmt.Printf("image %d:\n", i+1)
		for level, l := range group {
			fmt.Printf("  level %d  %-20s scale %v  %s\n", level, l.Path, l.Transform.Scales(), l.Transform)
		}
	}
	return nil
}

func doServe(config *server.Config, ref string, paths []string) error {
	s := server.NewService(config)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report, err := s.Load(ctx, ref, paths)
	if err != nil {
		return err
	}
	for _, skip := range report.Skipped {
		fmt.Printf("Skipped entry %d (%s): %s\n", skip.Index, skip.Path, skip.Reason)
	}
	for _, failed := range report.Failed {
		fmt.Printf("Cannot show %s: %s\n", failed.Name, failed.Reason)
	}
	fmt.Printf("Showing %d sources from %s (%d timepoints, 2D: %t) with %s block cache\n",
		len(report.Bound), ref, report.NumTimepoints, report.Is2D,
		humanize.IBytes(uint64(config.SessionOptions().BlockCacheBytes)))

	// Capture ctrl+c and other interrupts.  Then handle graceful shutdown.
	stopSig := make(chan os.Signal, 1)
	signal.Notify(stopSig, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-stopSig
		log.Printf("Stop signal captured: %q.  Shutting down...\n", sig)
		cancel()
	}()
	return s.Serve(ctx)
}
