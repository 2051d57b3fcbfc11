// mkmap.go -- Build compile-time perfect hash maps
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// mkmap is an example of driving the staticmap builder, emitter and
// mapfile packages. Input is a variety of text sources:
//   - white space delimited text file: first field is key, second field is value
//   - Comma Separated text file (CSV): first field is key, second field is value
//   - a generated benchmark corpus (--demo N)
//
// By default the key/value pairs are frozen into a single .smap map
// file. With --codegen the tool instead writes generated Go source plus
// sidecar blobs into the output directory, for embedding the map into a
// program at compile time.

package main

import (
	"fmt"
	"os"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	flag "github.com/opencoff/pflag"

	staticmap "github.com/opencoff/go-staticmap"
	"github.com/opencoff/go-staticmap/builder"
	"github.com/opencoff/go-staticmap/mapfile"
)

var log = logging.Logger("mkmap")

func main() {
	var codegen, verify, dump, verbose bool
	var name, pkg, hashName string
	var seed, limit uint64
	var demo int

	usage := fmt.Sprintf("%s [options] OUTPUT [INPUT ...]", os.Args[0])

	flag.BoolVarP(&codegen, "codegen", "g", false, "Emit generated Go + sidecars instead of a map file")
	flag.BoolVarP(&verify, "verify", "V", false, "Verify a frozen map file")
	flag.BoolVarP(&dump, "dump", "D", false, "Dump all records of a frozen map file")
	flag.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flag.StringVarP(&name, "name", "n", "map", "Use `N` as the map name")
	flag.StringVarP(&pkg, "pkg", "p", "main", "Use `P` as the generated package name")
	flag.StringVarP(&hashName, "hash", "H", "xx", "Hash oracle: one of xx, sip, fast, fnv")
	flag.Uint64VarP(&seed, "seed", "s", 0, "Pin the initial `seed` (0 means random)")
	flag.Uint64VarP(&limit, "limit", "l", 0, "Bound the seed search to `L` trials (0 means unbounded)")
	flag.IntVarP(&demo, "demo", "d", 0, "Generate a demo corpus of `N` keys instead of reading inputs")
	flag.Usage = func() {
		fmt.Printf("mkmap - build constant maps from txt or CSV files\nUsage: %s\n", usage)
		flag.PrintDefaults()
	}

	flag.Parse()
	args := flag.Args()

	if verbose {
		logging.SetLogLevel("*", "debug")
	}

	if len(args) < 1 {
		die("No output file name!\nUsage: %s\n", usage)
	}

	out := args[0]
	args = args[1:]

	if verify || dump {
		rd, err := mapfile.NewReader(out, 1000)
		if err != nil {
			die("can't read %s: %s", out, err)
		}
		defer rd.Close()

		if dump {
			err := rd.Each(func(key, val []byte) bool {
				fmt.Printf("%s\t%s\n", key, val)
				return true
			})
			if err != nil {
				die("dump failed: %s", err)
			}
			return
		}

		rd.DumpMeta(os.Stdout)
		if err := rd.VerifyRecords(); err != nil {
			die("verify failed: %s", err)
		}

		fmt.Printf("%s: %d records OK\n", out, rd.Len())
		return
	}

	var keys, vals [][]byte
	var err error

	if demo > 0 {
		keys, vals = demoCorpus(demo)
		log.Infof("generated demo corpus of %d keys", len(keys))
	} else {
		keys, vals, err = readInputs(args)
		if err != nil {
			die("%s", err)
		}
	}

	if codegen {
		emitCode(out, name, pkg, hashName, seed, limit, keys, vals)
		return
	}

	freezeMapfile(out, seed, limit, keys, vals)
}

// hasher resolves a --hash name into the oracle and the generated-code
// expression naming it.
func hasher(name string) (staticmap.Hasher, string) {
	switch name {
	case "sip":
		return staticmap.SipHasher{}, "staticmap.SipHasher{}.Hash"
	case "fast":
		return staticmap.FastHasher{}, "staticmap.FastHasher{}.Hash"
	case "fnv":
		return staticmap.FNVHasher{}, "staticmap.FNVHasher{}.Hash"
	case "xx":
		return staticmap.XXHasher{}, "staticmap.XXHasher{}.Hash"
	default:
		die("unknown hash %q; want xx, sip, fast or fnv", name)
		return nil, ""
	}
}

func freezeMapfile(fn string, seed, limit uint64, keys, vals [][]byte) {
	w, err := mapfile.NewWriter(fn)
	if err != nil {
		die("can't create map file: %s", err)
	}

	if seed != 0 {
		w.SetSeed(seed)
	}
	if limit != 0 {
		w.SetLimit(limit)
	}

	if _, err := w.AddKeyVals(keys, vals); err != nil {
		w.Abort()
		die("can't add records: %s", err)
	}

	if err := w.Freeze(); err != nil {
		die("can't freeze %s: %s", fn, err)
	}

	fmt.Printf("%s: %d records\n", fn, len(keys))
}

func emitCode(dir, name, pkg, hashName string, seed, limit uint64, keys, vals [][]byte) {
	h, hashExpr := hasher(hashName)

	if err := os.MkdirAll(dir, 0755); err != nil {
		die("can't create %s: %s", dir, err)
	}

	bld := builder.New[[]byte]().
		SetHash(h.Hash).
		SetOrd(staticmap.BytesCmp)
	if seed != 0 {
		bld.SetSeed(seed)
	}
	if limit != 0 {
		bld.SetLimit(limit)
	}

	res, err := bld.Build(keys)
	if err != nil {
		die("can't build map: %s", err)
	}

	if s, ok := res.SeedUsed(); ok {
		log.Infof("built %s map over %d keys, seed %#x", res.Kind, len(keys), s)
	}

	upper := strings.ToUpper(name)
	em := builder.NewEmitter(name, hashExpr, dir).SetPackage(pkg)

	k := em.CreateBytesPositionKeys(upper+"_KEYS", res, builder.Reorder(res, keys))
	v := em.CreateBytesPositionSeq(upper+"_VALS", builder.Reorder(res, vals))
	pair := em.CreatePair(k, v)
	em.CreateMap(upper+"_MAP", pair, res)

	cfn := fmt.Sprintf("%s/%s.go", dir, name)
	cf, err := os.Create(cfn)
	if err != nil {
		die("can't create %s: %s", cfn, err)
	}

	if err := em.Emit(cf); err != nil {
		cf.Close()
		die("can't emit %s: %s", cfn, err)
	}
	if err := cf.Close(); err != nil {
		die("can't close %s: %s", cfn, err)
	}

	fmt.Printf("%s: %d keys via %s strategy\n", cfn, len(keys), res.Kind)
}

// die with error
func die(f string, v ...interface{}) {
	warn(f, v...)
	os.Exit(1)
}

func warn(f string, v ...interface{}) {
	z := fmt.Sprintf("%s: %s", os.Args[0], f)
	s := fmt.Sprintf(z, v...)
	if n := len(s); s[n-1] != '\n' {
		s += "\n"
	}

	os.Stderr.WriteString(s)
	os.Stderr.Sync()
}

// vim: ft=go:sw=4:ts=4:noexpandtab:tw=78:
