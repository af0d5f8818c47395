package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/marmos91/mdus/pkg/config"
)

const version = "0.0.1"

const usage = `Usage: mdus [OPTION]...

Options:
      --dry                dry run.  try to set up the server and return
                           0 if successful.  do not accept connections.
      --no-warn-threads    suppresses the warning for specifying an unusually high number of threads.
  -c, --hbtime [n]         print an informative heartbeat message every [n] seconds.  the default is 120.  -1 to disable.
  -V, --version            print the version number and exit.
  -h, --help               print this message and exit.
  -p, --port [port]        tells mdus to use port [port].  the default is 8000.
  -t, --threads [n]        tells mdus to use exactly [n] threads.  the default is 7.
  -v, --verbose            also print debugging messages.
      --config [path]      read settings from [path] instead of ~/.config/mdus/config.yaml.
      --init-config        write a sample configuration file and exit.
      --force              overwrite an existing file with --init-config.
`

// options holds the parsed command line.
type options struct {
	overrides  config.Flags
	configPath string
	initConfig bool
	force      bool
	version    bool
}

// parseFlags parses args (without the program name). Short and long forms
// of the same option share one variable; the last occurrence wins.
//
// Returns flag.ErrHelp for -h/--help after printing the usage to out.
func parseFlags(args []string, out io.Writer) (*options, error) {
	fs := flag.NewFlagSet("mdus", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { _, _ = fmt.Fprint(out, usage) }

	var (
		opts      options
		threads   int
		port      int
		heartbeat int
	)

	fs.IntVar(&threads, "t", 0, "")
	fs.IntVar(&threads, "threads", 0, "")
	fs.IntVar(&port, "p", 0, "")
	fs.IntVar(&port, "port", 0, "")
	fs.IntVar(&heartbeat, "c", 0, "")
	fs.IntVar(&heartbeat, "hbtime", 0, "")
	fs.BoolVar(&opts.overrides.Verbose, "v", false, "")
	fs.BoolVar(&opts.overrides.Verbose, "verbose", false, "")
	fs.BoolVar(&opts.version, "V", false, "")
	fs.BoolVar(&opts.version, "version", false, "")
	fs.BoolVar(&opts.overrides.DryRun, "dry", false, "")
	fs.BoolVar(&opts.overrides.NoWarnThreads, "no-warn-threads", false, "")
	fs.StringVar(&opts.configPath, "config", "", "")
	fs.BoolVar(&opts.initConfig, "init-config", false, "")
	fs.BoolVar(&opts.force, "force", false, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	// Only flags that were given override the configuration
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t", "threads":
			opts.overrides.Threads = &threads
		case "p", "port":
			opts.overrides.Port = &port
		case "c", "hbtime":
			opts.overrides.Heartbeat = &heartbeat
		}
	})

	return &opts, nil
}
