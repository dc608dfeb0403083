package btca

import "fmt"

// Convention selects the argument shapes of a btca release. Older releases
// nest resource management under "config"; newer ones flatten it.
type Convention string

const (
	// ConfigStyle: btca config resources add -n <name> -t git -u <url>
	ConfigStyle Convention = "config"
	// FlatStyle: btca add <url> -n <name> -t git
	FlatStyle Convention = "flat"
)

// ParseConvention validates a convention name.
func ParseConvention(s string) (Convention, error) {
	switch c := Convention(s); c {
	case ConfigStyle, FlatStyle:
		return c, nil
	}
	return "", fmt.Errorf("unknown convention %q: must be %q or %q", s, ConfigStyle, FlatStyle)
}

// AskArgs builds: ask -r <name> [-r <name> ...] -q <question>.
// Both conventions agree on this shape.
func (c Convention) AskArgs(resources []string, question string) []string {
	args := make([]string, 0, 2*len(resources)+3)
	args = append(args, "ask")
	for _, r := range resources {
		args = append(args, "-r", r)
	}
	return append(args, "-q", question)
}

// ModelArgs builds the provider/model update command.
func (c Convention) ModelArgs(provider, model string) []string {
	if c == FlatStyle {
		return []string{"connect", "--provider", provider, "--model", model}
	}
	return []string{"config", "model", "--provider", provider, "--model", model}
}

// ListArgs builds the resource listing command.
func (c Convention) ListArgs() []string {
	if c == FlatStyle {
		return []string{"resources"}
	}
	return []string{"config", "resources", "list"}
}

// AddArgs builds the resource add command. req must already be validated.
func (c Convention) AddArgs(req AddRequest) []string {
	// The positional source is the url for git resources and the path for
	// local ones.
	source := req.Path
	if req.Type == GitResource {
		source = req.URL
	}

	var args []string
	if c == FlatStyle {
		args = []string{"add", source, "-n", req.Name, "-t", string(req.Type)}
	} else {
		args = []string{"config", "resources", "add", "-n", req.Name, "-t", string(req.Type)}
		if req.Type == GitResource {
			args = append(args, "-u", source)
		} else {
			args = append(args, "--path", source)
		}
	}

	if req.Type == GitResource && req.Branch != "" {
		args = append(args, "-b", req.Branch)
	}

	searchFlag := "--search-path"
	if c == FlatStyle {
		searchFlag = "-s"
	}
	for _, sp := range req.SearchPaths {
		if sp == "" {
			continue
		}
		args = append(args, searchFlag, sp)
	}

	if req.Notes != "" {
		args = append(args, "--notes", req.Notes)
	}
	return args
}

// RemoveArgs builds the resource removal command.
func (c Convention) RemoveArgs(name string) []string {
	if c == FlatStyle {
		return []string{"remove", name}
	}
	return []string{"config", "resources", "remove", "--name", name}
}

// ClearArgs builds the cache clearing command.
func (c Convention) ClearArgs() []string {
	return []string{"clear"}
}
