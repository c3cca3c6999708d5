// Command remotemapctl is a small demonstration client: it loads a YAML
// config, opens a remotemap.Client against a string/string map, and runs
// whichever subcommand was given.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/hybscloud/remotemap"
	"github.com/hybscloud/remotemap/config"
	"github.com/hybscloud/remotemap/serializer/cbor"
	"github.com/hybscloud/remotemap/serializer/text"
)

func main() {
	cfgPath := flag.String("config", "remotemapctl.yaml", "path to a remotemapctl YAML config")
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		log.Fatal("usage: remotemapctl -config FILE <get|put|remove|size|keys> [args...]")
	}

	f, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	backend := logging.NewLogBackend(os.Stderr, "", 0)
	logger := remotemap.NewLogger(backend, "remotemapctl")

	cc := f.ToClientConfig()
	cc.Logger = logger

	client := remotemap.NewClient[string, string](cc, text.String{}, text.String{}, cbor.ObjectCodec{})
	defer client.Close()

	switch args[0] {
	case "get":
		requireArgs(args, 2, "get KEY")
		v, ok, err := client.Get(args[1])
		fatalIf(err)
		if !ok {
			fmt.Println("(absent)")
			return
		}
		fmt.Println(v)

	case "put":
		requireArgs(args, 3, "put KEY VALUE")
		prior, had, err := client.Put(args[1], args[2])
		fatalIf(err)
		if had {
			fmt.Printf("replaced %q\n", prior)
		} else {
			fmt.Println("inserted")
		}

	case "remove":
		requireArgs(args, 2, "remove KEY")
		prior, had, err := client.Remove(args[1])
		fatalIf(err)
		if had {
			fmt.Printf("removed %q\n", prior)
		} else {
			fmt.Println("(absent)")
		}

	case "size":
		n, err := client.LongSize()
		fatalIf(err)
		fmt.Println(n)

	case "keys":
		keys, err := client.KeySet()
		fatalIf(err)
		for _, k := range keys {
			fmt.Println(k)
		}

	default:
		log.Fatalf("unknown subcommand %q", args[0])
	}
}

func requireArgs(args []string, n int, usage string) {
	if len(args) < n {
		log.Fatalf("usage: remotemapctl %s", usage)
	}
}

func fatalIf(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
