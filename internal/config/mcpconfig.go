package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/pkg/types"
	"github.com/tidwall/jsonc"
)

// mcpTransport is the wire shape of one server's transport block (§6):
// {"type":"stdio",...} or {"type":"websocket","url":"..."}.
type mcpTransport struct {
	Type    string            `json:"type"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

type mcpServerEntry struct {
	Name      string       `json:"name"`
	Enabled   bool         `json:"enabled"`
	Transport mcpTransport `json:"transport"`
}

// mcpDocument is the on-disk shape of .floyd/mcp.json. Extra preserves
// any field this build doesn't know about so the file round-trips (§6).
type mcpDocument struct {
	Version string                     `json:"version"`
	Servers []mcpServerEntry           `json:"servers"`
	Extra   map[string]json.RawMessage `json:"-"`
}

var mcpDocumentFields = map[string]bool{"version": true, "servers": true}

func (d mcpDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.Extra)+2)
	for k, v := range d.Extra {
		out[k] = v
	}
	version, err := json.Marshal(d.Version)
	if err != nil {
		return nil, err
	}
	out["version"] = version
	servers, err := json.Marshal(d.Servers)
	if err != nil {
		return nil, err
	}
	out["servers"] = servers
	return json.Marshal(out)
}

func (d *mcpDocument) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &d.Version); err != nil {
			return err
		}
	}
	if v, ok := raw["servers"]; ok {
		if err := json.Unmarshal(v, &d.Servers); err != nil {
			return err
		}
	}
	d.Extra = nil
	for k, v := range raw {
		if mcpDocumentFields[k] {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage)
		}
		d.Extra[k] = v
	}
	return nil
}

// LoadMCPServers reads .floyd/mcp.json (or .floyd/mcp.config.json) from
// directory and returns the configured server descriptors. A missing
// file is not an error: it yields an empty list.
func LoadMCPServers(directory string) ([]types.MCPServerDescriptor, error) {
	path := MCPConfigPath(directory)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		path = MCPConfigAltPath(directory)
		data, err = os.ReadFile(path)
	}
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errkind.New(types.ConfigError, fmt.Errorf("reading %s: %w", path, err))
	}

	var doc mcpDocument
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, errkind.New(types.ConfigError, fmt.Errorf("parsing %s: %w", path, err))
	}

	descriptors := make([]types.MCPServerDescriptor, 0, len(doc.Servers))
	for _, s := range doc.Servers {
		d := types.MCPServerDescriptor{
			Name:    s.Name,
			Enabled: s.Enabled,
		}
		switch s.Transport.Type {
		case "stdio":
			d.Transport = types.MCPTransportStdio
			if s.Transport.Command != "" {
				d.Command = append([]string{s.Transport.Command}, s.Transport.Args...)
			}
			d.Args = s.Transport.Args
			d.Env = s.Transport.Env
		case "websocket":
			d.Transport = types.MCPTransportWebSocket
			d.URL = s.Transport.URL
		default:
			return nil, errkind.Newf(types.ConfigError, "mcp server %q: unknown transport type %q", s.Name, s.Transport.Type)
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// SaveMCPServers writes the server list back to .floyd/mcp.json,
// preserving any Extra top-level fields read at load time.
func SaveMCPServers(directory string, servers []types.MCPServerDescriptor, extra map[string]json.RawMessage) error {
	doc := mcpDocument{Version: "1.0", Extra: extra}
	for _, d := range servers {
		entry := mcpServerEntry{Name: d.Name, Enabled: d.Enabled}
		switch d.Transport {
		case types.MCPTransportStdio:
			entry.Transport = mcpTransport{Type: "stdio", Env: d.Env, Args: d.Args}
			if len(d.Command) > 0 {
				entry.Transport.Command = d.Command[0]
			}
		case types.MCPTransportWebSocket:
			entry.Transport = mcpTransport{Type: "websocket", URL: d.URL}
		}
		doc.Servers = append(doc.Servers, entry)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errkind.New(types.ConfigError, err)
	}
	path := MCPConfigPath(directory)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errkind.New(types.ConfigError, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errkind.New(types.ConfigError, err)
	}
	return nil
}
