// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syntax

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// TreeString returns a compact, position-free rendering of the tree
// rooted at n, such as (FunDecl Name=hi Body=(Block Stmts=((ExprStmt X=1)))).
func TreeString(n Node) string {
	var buf bytes.Buffer
	writeTree(&buf, reflect.ValueOf(n))
	return buf.String()
}

// Fprint writes the tree of each statement of f to out, one per line.
func Fprint(out io.Writer, f *File) error {
	for _, stmt := range f.Stmts {
		if _, err := fmt.Fprintln(out, TreeString(stmt)); err != nil {
			return err
		}
	}
	return nil
}

var (
	positionType = reflect.TypeOf(Position{})
	tokenType    = reflect.TypeOf(Token(0))
	modKindType  = reflect.TypeOf(ModKind(0))
)

func writeTree(out *bytes.Buffer, x reflect.Value) {
	switch x.Kind() {
	case reflect.String, reflect.Int, reflect.Int64, reflect.Bool:
		fmt.Fprintf(out, "%v", x.Interface())
	case reflect.Ptr, reflect.Interface:
		if elem := x.Elem(); elem.Kind() == 0 {
			out.WriteString("nil")
		} else {
			writeTree(out, elem)
		}
	case reflect.Struct:
		switch v := x.Interface().(type) {
		case Ident:
			out.WriteString(v.Name)
			return
		case IntLit:
			fmt.Fprintf(out, "%d", v.Value)
			return
		case StringConst:
			fmt.Fprintf(out, "%q", v.Value)
			return
		case StringLit:
			if s, ok := v.Const(); ok {
				fmt.Fprintf(out, "%q", s)
				return
			}
		case TypeExpr:
			if v.Result == nil {
				out.WriteString(v.Name)
				return
			}
		}
		fmt.Fprintf(out, "(%s", strings.TrimPrefix(x.Type().String(), "syntax."))
		for i, n := 0, x.NumField(); i < n; i++ {
			field := x.Type().Field(i)
			if field.PkgPath != "" {
				continue // unexported: arena bookkeeping
			}
			f := x.Field(i)
			name := field.Name
			if f.Type() == positionType || name == "Raw" || name == "Scope" || name == "Path" {
				continue
			}
			if f.Type() == tokenType || f.Type() == modKindType {
				fmt.Fprintf(out, " %s=%s", name, f.Interface())
				continue
			}

			switch f.Kind() {
			case reflect.String:
				if f.String() == "" {
					continue
				}
			case reflect.Slice:
				if n := f.Len(); n > 0 {
					fmt.Fprintf(out, " %s=(", name)
					for i := 0; i < n; i++ {
						if i > 0 {
							out.WriteByte(' ')
						}
						writeTree(out, f.Index(i))
					}
					out.WriteByte(')')
				}
				continue
			case reflect.Ptr, reflect.Interface:
				if f.IsNil() {
					continue
				}
			case reflect.Int, reflect.Int64:
				if f.Int() != 0 {
					fmt.Fprintf(out, " %s=%d", name, f.Int())
				}
				continue
			case reflect.Bool:
				if f.Bool() {
					fmt.Fprintf(out, " %s", name)
				}
				continue
			}
			fmt.Fprintf(out, " %s=", name)
			writeTree(out, f)
		}
		fmt.Fprintf(out, ")")
	default:
		fmt.Fprintf(out, "%T", x.Interface())
	}
}
