// Periodically ping a running n5view server and report its session state.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")
)

const helpMessage = `

n5view-ping periodically calls the session API of an n5view server as a heartbeat.

Usage: n5view-ping [options] <delay in seconds> <server address>

  Example server address: http://localhost:8000

  -h, -help       (flag)    Show help message
`

type session struct {
	ID            string  `json:"id"`
	NumSources    int     `json:"num_sources"`
	NumTimepoints int     `json:"num_timepoints"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() {
		fmt.Print(helpMessage)
	}
	flag.Parse()

	args := flag.Args()
	if *showHelp || flag.NArg() != 2 {
		flag.Usage()
		os.Exit(0)
	}

	pause, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("error parsing pause time %q: %v\n", args[0], err)
		os.Exit(1)
	}
	sessionURL := strings.TrimSuffix(args[1], "/") + "/api/session"

	client := &http.Client{Timeout: 30 * time.Second}
	for t := range time.Tick(time.Duration(pause) * time.Second) {
		resp, err := client.Get(sessionURL)
		if err != nil {
			fmt.Printf("%s: error on GET of %q: %v\n", t, sessionURL, err)
			os.Exit(1)
		}
		var s session
		err = json.NewDecoder(resp.Body).Decode(&s)
		resp.Body.Close()
		switch {
		case resp.StatusCode != http.StatusOK:
			fmt.Printf("Bad response %s: %s\n", t.Format(time.RFC3339), resp.Status)
		case err != nil:
			fmt.Printf("Bad session response %s: %v\n", t.Format(time.RFC3339), err)
		default:
			fmt.Printf("%s session %s: %d sources, %d timepoints, cache hit rate %.1f%%\n",
				t.Format(time.RFC3339), s.ID, s.NumSources, s.NumTimepoints, 100*s.CacheHitRate)
		}
	}
}
