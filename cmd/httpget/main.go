// Command httpget fetches a single URL through the httpconn driver and
// prints the response, exercising the library end-to-end the way the
// other example repos' cmd/ binaries wrap their core packages.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"httpconn"
)

func main() {
	var (
		timeout  = flag.Duration("timeout", 30*time.Second, "completion timeout")
		userAgent = flag.String("user-agent", "httpget/1.0", "User-Agent header value")
		rateLimit = flag.Uint64("rate-limit", 0, "download rate limit, bytes/sec (0 = unlimited)")
		redirects = flag.Int("redirects", httpconn.DefaultRedirectBudget, "max redirects to follow")
		bottled   = flag.Bool("bottled", true, "buffer the whole response before printing")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: httpget [flags] <url>")
		os.Exit(2)
	}
	url := flag.Arg(0)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	done := make(chan struct{})

	c := httpconn.New(func(r httpconn.Result) {
		if r.Err != nil {
			logger.Error("request failed", "url", url, "err", r.Err)
			os.Exit(1)
		}
		if r.StatusCode != 0 {
			fmt.Printf("HTTP %d %s\n", r.StatusCode, r.ReasonPhrase)
			for _, h := range r.Headers {
				fmt.Printf("%s: %s\n", h.Name, h.Value)
			}
			fmt.Println()
		}
		os.Stdout.Write(r.Body)
		if !*bottled {
			return
		}
		close(done)
	}, httpconn.WithLogger(logger))

	if *rateLimit > 0 {
		c.RateLimit(*rateLimit)
	}

	opts := httpconn.DefaultGetOptions()
	opts.Timeout = *timeout
	opts.UserAgent = *userAgent
	opts.RedirectBudget = *redirects
	opts.Bottled = *bottled

	c.Get(url, opts)

	if *bottled {
		<-done
		return
	}

	// Streaming mode delivers multiple Results; give the request a
	// generous grace period beyond its own timeout to finish draining.
	time.Sleep(*timeout + 2*time.Second)
}
