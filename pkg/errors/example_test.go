// Package errors provides examples of structured error handling in genobatch.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// Example demonstrates basic error creation.
func Example() {
	err := errors.New(errors.ErrorTypeInvalidInput, "Invalid attribute type: 'int'. Must be 'String' or 'Array'.").
		WithDetail("attribute", "gene_id")

	fmt.Println(err.Error())

	// Output:
	// invalid_input: Invalid attribute type: 'int'. Must be 'String' or 'Array'.
}

// ExampleWrap shows how parser failures are wrapped with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeParse, "truncated FASTQ record").
		WithDetail("line", 42)

	if errors.IsType(err, errors.ErrorTypeParse) {
		fmt.Println("This is a parse error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Cause was unexpected EOF")
	}

	// Output:
	// This is a parse error
	// Cause was unexpected EOF
}

// ExampleIsRetryable shows that engine failures are terminal.
func ExampleIsRetryable() {
	parseErr := errors.New(errors.ErrorTypeParse, "bad record")
	lookupErr := errors.New(errors.ErrorTypeIndexLookup, "unknown contig")
	connErr := errors.New(errors.ErrorTypeConnection, "connection reset")

	fmt.Println(errors.IsRetryable(parseErr))
	fmt.Println(errors.IsRetryable(lookupErr))
	fmt.Println(errors.IsRetryable(connErr))

	// Output:
	// false
	// false
	// true
}

// ExampleHasType demonstrates searching a chain of structured errors.
func ExampleHasType() {
	inner := errors.New(errors.ErrorTypeIndexLookup, "contig chr9 not in index")
	outer := errors.Wrap(inner, errors.ErrorTypeData, "query scan failed")

	fmt.Printf("outer is data: %v\n", errors.IsType(outer, errors.ErrorTypeData))
	fmt.Printf("outer is index_lookup: %v\n", errors.IsType(outer, errors.ErrorTypeIndexLookup))
	fmt.Printf("chain has index_lookup: %v\n", errors.HasType(outer, errors.ErrorTypeIndexLookup))
	fmt.Println(outer)

	// Output:
	// outer is data: true
	// outer is index_lookup: false
	// chain has index_lookup: true
	// data: query scan failed: index_lookup: contig chr9 not in index
}

func ExampleTypeOf() {
	err := errors.New(errors.ErrorTypeParse, "line 3: expected 9 columns")
	fmt.Println(errors.TypeOf(err))
	fmt.Println(errors.TypeOf(io.ErrUnexpectedEOF))

	// Output:
	// parse
	// unknown
}
