// Command pgndump explains the bundled CANBoat PGN schema catalogue (-explain*) and decodes canboat-format
// raw lines read from stdin, printing each decoded message as compact JSON through canboat.Renderer.
package main

import (
	"bufio"
	"bytes"
	"embed"
	"flag"
	"fmt"
	"github.com/nmeadecode/canboat/canboat"
	"io/fs"
	"log"
	"os"
)

//go:embed `canboat.json`
var canboatDB embed.FS

const pgnDumpVersion = "0.1.0"

func main() {
	explain := flag.Bool("explain", false, "print a text dump of the PGN schema catalogue and exit")
	explainXML := flag.Bool("explain-xml", false, "print the generic XML PGN schema dump and exit")
	explainNGTXML := flag.Bool("explain-ngt-xml", false, "print the Actisense NGT-1 flavored XML PGN schema dump and exit")
	explainIKXML := flag.Bool("explain-ik-xml", false, "print the iKonvert flavored XML PGN schema dump and exit")
	v1 := flag.Bool("v1", false, "use the legacy v1 schema variant for -explain-xml output")
	camel := flag.Bool("camel", false, "render field/PGN ids in camelCase (default, kept for parity with canboat's analyzer)")
	upperCamel := flag.Bool("upper-camel", false, "render field/PGN ids in PascalCase instead of camelCase")
	version := flag.Bool("version", false, "print version and exit")
	pgnsPath := flag.String("d", "", "path to a CANBoat pgns.json file, overriding the bundled default")
	flag.Parse()

	if *version {
		fmt.Println(pgnDumpVersion)
		return
	}

	var canboatDBFS fs.FS
	var canboatDBPath string
	if *pgnsPath != "" {
		canboatDBFS = os.DirFS(".")
		canboatDBPath = *pgnsPath
	} else {
		canboatDBFS = canboatDB
		canboatDBPath = "canboat.json"
	}

	schema, err := canboat.LoadCANBoatSchema(canboatDBFS, canboatDBPath)
	if err != nil {
		log.Fatal(err)
	}

	if errs := schema.PGNs.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "schema error: %v\n", e)
		}
		os.Exit(2)
	}

	explainer := canboat.NewExplainer(schema)
	explainer.UpperCamel = *upperCamel && !*camel

	switch {
	case *explain:
		buf := new(bytes.Buffer)
		if err := explainer.ExplainText(buf); err != nil {
			log.Fatal(err)
		}
		fmt.Print(buf.String())
		return
	case *explainXML, *explainNGTXML, *explainIKXML:
		buf := new(bytes.Buffer)
		if *v1 {
			err = explainer.ExplainV1(buf)
		} else {
			dialect := canboat.ExplainXMLGeneric
			switch {
			case *explainNGTXML:
				dialect = canboat.ExplainXMLActisense
			case *explainIKXML:
				dialect = canboat.ExplainXMLIKonvert
			}
			err = explainer.ExplainXML(buf, dialect)
		}
		if err != nil {
			log.Fatal(err)
		}
		fmt.Print(buf.String())
		return
	}

	decoder := canboat.NewDecoder(schema)
	renderer := canboat.NewRenderer(canboat.RenderModeCompactJSON)

	scanner := bufio.NewScanner(os.Stdin)
	msgCount := uint64(0)
	errorCount := uint64(0)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		msgCount++

		raw, err := canboat.UnmarshalString(line)
		if err != nil {
			errorCount++
			fmt.Fprintf(os.Stderr, "# invalid input line: %v\n", err)
			continue
		}

		decoded, err := decoder.Decode(raw)
		if err != nil {
			errorCount++
			fmt.Fprintf(os.Stderr, "# unknown PGN %v: %v\n", raw.Header.PGN, err)
			continue
		}

		pgn, ok := schema.PGNs.Match(raw.Data)
		if !ok {
			if matches := schema.PGNs.FilterByPGN(raw.Header.PGN); len(matches) > 0 {
				pgn = matches[0]
			}
		}

		buf := new(bytes.Buffer)
		if err := renderer.Render(buf, pgn, decoded); err != nil {
			log.Fatal(err)
		}
		fmt.Println(buf.String())
	}
	fmt.Fprintf(os.Stderr, "# processed: %v, errors: %v\n", msgCount, errorCount)
}
