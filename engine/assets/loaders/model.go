package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
	"github.com/spaghettifunk/texture-renderer/engine/resources"
)

// ModelLoader reads Wavefront OBJ files. Polygons are triangulated as fans and
// identical position/texcoord/normal triples share one vertex.
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mesh, err := ParseOBJ(name, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &resources.Resource{
		ID:       uuid.New(),
		Name:     mesh.Name,
		FullPath: path,
		Type:     resources.ResourceTypeMesh,
		DataSize: uint64(len(mesh.Vertices)*32 + len(mesh.Indices)*4),
		Data:     mesh,
	}, nil
}

func (ml *ModelLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}

type objIndex [3]int

func ParseOBJ(name string, r io.Reader) (*renderer.MeshData, error) {
	var (
		positions []math.Vec3
		texcoords []math.Vec2
		normals   []math.Vec3
		lookup    = map[objIndex]uint32{}
		mesh      = &renderer.MeshData{Name: name}
	)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "o":
			if len(fields) > 1 {
				mesh.Name = fields[1]
			}
		case "v":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			positions = append(positions, math.NewVec3(v[0], v[1], v[2]))
		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			// OBJ puts the origin at the bottom left.
			texcoords = append(texcoords, math.NewVec2(v[0], 1-v[1]))
		case "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			normals = append(normals, math.NewVec3(v[0], v[1], v[2]))
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices", line)
			}
			face := make([]uint32, 0, len(fields)-1)
			for _, field := range fields[1:] {
				key, err := parseFaceVertex(field, len(positions), len(texcoords), len(normals))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				index, ok := lookup[key]
				if !ok {
					vertex := math.Vertex3D{Position: positions[key[0]]}
					if key[1] >= 0 {
						vertex.Texcoord = texcoords[key[1]]
					}
					if key[2] >= 0 {
						vertex.Normal = normals[key[2]]
					}
					index = uint32(len(mesh.Vertices))
					mesh.Vertices = append(mesh.Vertices, vertex)
					lookup[key] = index
				}
				face = append(face, index)
			}
			for i := 1; i+1 < len(face); i++ {
				mesh.Indices = append(mesh.Indices, face[0], face[i], face[i+1])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("no faces")
	}
	if len(normals) == 0 {
		math.GeometryGenerateNormals(mesh.Vertices, mesh.Indices)
	}
	return mesh, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// parseFaceVertex resolves "p", "p/t", "p//n" and "p/t/n" into zero based indices, -1 when absent.
func parseFaceVertex(field string, positions, texcoords, normals int) (objIndex, error) {
	key := objIndex{-1, -1, -1}
	counts := [3]int{positions, texcoords, normals}
	for i, part := range strings.Split(field, "/") {
		if i > 2 {
			return key, fmt.Errorf("bad face vertex %q", field)
		}
		if part == "" {
			if i == 0 {
				return key, fmt.Errorf("face vertex %q has no position", field)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return key, err
		}
		// Negative indices count back from the latest element.
		if n < 0 {
			n = counts[i] + n
		} else {
			n--
		}
		if n < 0 || n >= counts[i] {
			return key, fmt.Errorf("face vertex %q out of range", field)
		}
		key[i] = n
	}
	return key, nil
}
