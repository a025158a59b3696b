package builder

import (
	"fmt"
	"path"
	"strings"

	"github.com/slipway-sh/slipway/internal/spec"
)

// Dockerfile synthesizes the build instructions for a descriptor. The
// install order is fixed: system packages first, then the dependency
// manifest, since the installer tooling may rely on the OS utilities.
func Dockerfile(bs *spec.BuildSpec) string {
	var b strings.Builder

	fmt.Fprintf(&b, "FROM %s\n", bs.BaseImage)

	if len(bs.SystemPackages) > 0 {
		fmt.Fprintf(&b, "RUN apt-get update && apt-get install -y --no-install-recommends %s && rm -rf /var/lib/apt/lists/*\n",
			strings.Join(bs.SystemPackages, " "))
	}

	b.WriteString("WORKDIR /app\n")

	appDir := bs.AppDir
	if appDir == "" {
		appDir = "."
	}
	fmt.Fprintf(&b, "COPY %s /app\n", appDir)

	if bs.Manifest != "" {
		fmt.Fprintf(&b, "RUN pip install --no-cache-dir -r %s\n", path.Join("/app", bs.Manifest))
	}

	fmt.Fprintf(&b, "EXPOSE %d\n", bs.Port)
	fmt.Fprintf(&b, "CMD %s\n", jsonArgv(bs.Entrypoint))

	return b.String()
}

// jsonArgv renders an exec-form instruction argument list. Exec form keeps
// the entry point as the container's foreground process instead of a shell
// child, so signals reach it directly.
func jsonArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = fmt.Sprintf("%q", arg)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
