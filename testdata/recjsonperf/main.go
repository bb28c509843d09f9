package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/xdg-go/recjson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: recjsonperf <json file>")
	}
	inputFile := os.Args[1]
	jsonData, err := os.ReadFile(inputFile)
	if err != nil {
		log.Fatal(err)
	}
	recs := benchDecode(jsonData)
	benchEncode(recs, len(jsonData))
	benchMongoDriverRW(jsonData)
	benchNaive(jsonData)
}

func benchDecode(input []byte) []*recjson.Record {
	dec, err := recjson.NewDecoderBytes(input)
	if err != nil {
		log.Fatal(err)
	}

	var recs []*recjson.Record
	start := time.Now()
	for {
		rec := recjson.NewRecord("")
		err = dec.Decode(rec)
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Fatal(err)
		}
		recs = append(recs, rec)
	}
	elapsed := time.Since(start)
	reportResult("recjson decode", len(input), elapsed)
	return recs
}

func benchEncode(recs []*recjson.Record, size int) {
	buf := make([]byte, 0, 4096)
	opts := recjson.DefaultFormat

	start := time.Now()
	for _, rec := range recs {
		var err error
		buf, err = recjson.AppendRecord(buf[0:0], rec, opts)
		if err != nil {
			log.Fatal(err)
		}
	}
	elapsed := time.Since(start)
	reportResult("recjson encode", size, elapsed)
}

func benchMongoDriverRW(input []byte) {
	var err error
	jsonReader := (bytes.NewReader(input))

	vr, err := bsonrw.NewExtJSONValueReader(jsonReader, false)
	if err != nil {
		log.Fatal(err)
	}

	// Documents are either separated by white space or entries of one
	// top-level array.
	var ar bsonrw.ArrayReader
	switch vr.Type() {
	case bsontype.EmbeddedDocument:
	case bsontype.Array:
		ar, err = vr.ReadArray()
		if err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatal("JSON format unsupported by Go driver")
	}

	copier := bsonrw.NewCopier()
	start := time.Now()
	for {
		if ar != nil {
			evr, err := ar.ReadValue()
			if err != nil {
				if err == bsonrw.ErrEOA {
					break
				}
				log.Fatal(err)
			}
			if evr.Type() != bsontype.EmbeddedDocument {
				log.Fatal("JSON format unsupported by Go driver")
			}
			if _, err := copier.CopyDocumentToBytes(evr); err != nil {
				log.Fatal(err)
			}
		} else {
			if _, err := copier.CopyDocumentToBytes(vr); err != nil {
				if err == io.EOF {
					break
				}
				log.Fatal(err)
			}
		}
	}
	elapsed := time.Since(start)
	reportResult("driver bsonrw", len(input), elapsed)
}

func benchNaive(input []byte) {
	dec := json.NewDecoder(bytes.NewReader(input))

	start := time.Now()
	for dec.More() {
		var m map[string]interface{}
		if err := dec.Decode(&m); err != nil {
			log.Fatal(err)
		}
		if _, err := bson.Marshal(m); err != nil {
			log.Fatal(err)
		}
	}
	elapsed := time.Since(start)
	reportResult("naive json->bson", len(input), elapsed)
}

func reportResult(label string, size int, elapsed time.Duration) {
	throughput := float64(size) / float64(elapsed.Microseconds())
	fmt.Printf("%16s %.2f MB/s\n", label, throughput)
}
