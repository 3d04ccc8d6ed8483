// Package qtmodule normalizes the fully-qualified, dotted package names
// found in Updates.xml ("qt.qt6.670.addons.qtcharts.gcc_64") down to the
// short names users pass to "-m" on the command line ("qtcharts").
package qtmodule

import "strings"

const addonsInfix = "addons."

// ShortName derives the user-facing module name from a fully-qualified
// package Name field. For MAJOR 6 and above, upstream prefixes optional
// module packages with "addons." ahead of the module token; that infix is
// stripped so "qt.qt6.670.addons.qtcharts.win64_mingw81" and
// "qt.qt5.5152.qtcharts.gcc_64" both normalize to "qtcharts".
func ShortName(qualifiedName string, major uint64) string {
	segments := strings.Split(qualifiedName, ".")
	if len(segments) < 3 {
		return qualifiedName
	}
	// Segment layout: qt . qt<major> . <version-digits> . [addons.] <module> [. <arch>]
	body := segments[3:]
	if major >= 6 && len(body) > 0 && body[0] == strings.TrimSuffix(addonsInfix, ".") {
		body = body[1:]
	}
	if len(body) == 0 {
		return qualifiedName
	}
	// The module token itself never contains a dot; the arch suffix (if any)
	// trails it and is not part of the short name.
	return body[0]
}

// IsAddonsQualified reports whether a fully-qualified name carries the
// "addons." infix, regardless of major version.
func IsAddonsQualified(qualifiedName string) bool {
	return strings.Contains(qualifiedName, "."+strings.TrimSuffix(addonsInfix, ".")+".")
}
