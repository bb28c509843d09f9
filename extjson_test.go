package recjson

import "testing"

func TestExtJSON(t *testing.T) {
	const binaryOut = `{"x":"c//SZESzTGmQ6OfR38A11A==","@fieldTypes":{"x":"B"}}`
	const dateOut = `{"t":"2020-03-04T05:06:07.089Z","@fieldTypes":{"t":"t"}}`

	cases := []unmarshalTestCase{
		{
			label:  "$oid",
			input:  `{"a" : {"$oid" : "56e1fc72e0c917e9c4714161"}}`,
			output: `{"a":"56e1fc72e0c917e9c4714161"}`,
		},
		{
			label:  "$symbol",
			input:  `{"a": {"$symbol": ""}}`,
			output: `{"a":""}`,
		},
		{
			label:  "$numberInt",
			input:  `{"i" : {"$numberInt": "0"}}`,
			output: `{"i":0}`,
		},
		{
			label:  "$numberLong",
			input:  `{"a" : {"$numberLong" : "-9223372036854775808"}}`,
			output: `{"a":-9223372036854775808,"@fieldTypes":{"a":"l"}}`,
		},
		{
			label:  "$numberDouble",
			input:  `{"d" : {"$numberDouble": "1.23456789012345677E+18"}}`,
			output: `{"d":1.2345678901234568e+18}`,
		},
		{
			label:  "$numberDouble NaN",
			input:  `{"d": {"$numberDouble": "NaN"}}`,
			output: `{"d":"NaN","@fieldTypes":{"d":"d"}}`,
		},
		{
			label:  "$numberDouble Inf",
			input:  `{"d": {"$numberDouble": "Infinity"}}`,
			output: `{"d":"Infinity","@fieldTypes":{"d":"d"}}`,
		},
		{
			label:  "$numberDouble -Inf",
			input:  `{"d": {"$numberDouble": "-Infinity"}}`,
			output: `{"d":"-Infinity","@fieldTypes":{"d":"d"}}`,
		},
		{
			label:  "$numberDecimal",
			input:  `{"d" : {"$numberDecimal" : "0.1000000000000000000000000000000000"}}`,
			output: `{"d":"0.1000000000000000000000000000000000","@fieldTypes":{"d":"c"}}`,
		},
		{
			label:  "$binary",
			input:  `{"x" : { "$binary" : {"base64" : "c//SZESzTGmQ6OfR38A11A==", "subType" : "03"}}}`,
			output: binaryOut,
		},
		{
			label:  "$binary, single type digit",
			input:  `{"x" : { "$binary" : {"base64" : "c//SZESzTGmQ6OfR38A11A==", "subType" : "3"}}}`,
			output: binaryOut,
		},
		{
			label:  "$binary, keys reversed",
			input:  `{"x" : { "$binary" : {"subType" : "03", "base64" : "c//SZESzTGmQ6OfR38A11A=="}}}`,
			output: binaryOut,
		},
		{
			label:  "$binary legacy",
			input:  `{"x" : { "$binary" : "c//SZESzTGmQ6OfR38A11A==", "$type" : "03"}}`,
			output: binaryOut,
		},
		{
			label:  "$binary legacy, keys reversed",
			input:  `{"x" : { "$type" : "03", "$binary" : "c//SZESzTGmQ6OfR38A11A==" }}`,
			output: binaryOut,
		},
		{
			label:  "$date string",
			input:  `{"t" : {"$date" : "2020-03-04T05:06:07.089Z"}}`,
			output: dateOut,
		},
		{
			label:  "$date numberLong",
			input:  `{"t" : {"$date" : {"$numberLong" : "1583298367089"}}}`,
			output: dateOut,
		},
		{
			label:  "$date number",
			input:  `{"t" : {"$date" : 1583298367089}}`,
			output: dateOut,
		},
		{
			label:  "wrapper in list",
			input:  `{"l" : [{"$numberLong" : "1"}, 2]}`,
			output: `{"l":[1,2],"@fieldTypes":{"l[0]":"l"}}`,
		},
		{
			label:  "unsupported wrapper is a map",
			input:  `{"a" : {"$maxKey" : 1}}`,
			output: `{"a":{"$maxKey":1}}`,
		},
		{
			label:  "bad $numberInt",
			input:  `{"a" : {"$numberInt" : "abc"}}`,
			errStr: "int conversion",
		},
		{
			label:  "$numberInt not a string",
			input:  `{"a" : {"$numberInt" : 1}}`,
			errStr: "$numberInt value must be a string",
		},
		{
			label:  "bad $oid",
			input:  `{"a" : {"$oid" : "xyz"}}`,
			errStr: "invalid $oid",
		},
		{
			label:  "bad binary subType",
			input:  `{"x" : { "$binary" : {"base64" : "AAAA", "subType" : "123"}}}`,
			errStr: "invalid binary subType",
		},
		{
			label:  "bad $date",
			input:  `{"t" : {"$date" : true}}`,
			errStr: "invalid $date value",
		},
	}

	testWithUnmarshal(t, cases, true)
}

func TestExtJSONDisabled(t *testing.T) {
	cases := []unmarshalTestCase{
		{
			label:  "$numberLong is a map",
			input:  `{"a" : {"$numberLong" : "5"}}`,
			output: `{"a":{"$numberLong":"5"}}`,
		},
	}

	testWithUnmarshal(t, cases, false)
}
