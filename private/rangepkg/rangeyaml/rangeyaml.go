// Copyright 2020-2024 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rangeyaml resolves clusters from YAML files.
//
// Each cluster is a file <dir>/<cluster>.yaml that maps section names to
// range expressions:
//
//	CLUSTER: web1..10
//	ALL:
//	  - "%web"
//	  - web20
//	ADMIN: alice
//
// A list value is the union of its items. The synthetic section KEYS lists
// all section names.
package rangeyaml

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ytoolshed/crange/private/pkg/cache"
	"github.com/ytoolshed/crange/private/rangepkg/rangeeval"
	"github.com/ytoolshed/crange/private/rangepkg/rangeset"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	// ModuleName is the name of the module.
	ModuleName = "yamlfile"
	// FileExt is the extension of cluster files.
	FileExt = ".yaml"
	// SectionCluster is the default section.
	SectionCluster = "CLUSTER"
	// SectionKeys is the synthetic section that lists all sections.
	SectionKeys = "KEYS"
	// ClusterHosts is the cluster whose sections are lowercase groups and admins.
	ClusterHosts = "HOSTS"
	// ClusterGroups is the cluster whose sections are uppercase groups.
	ClusterGroups = "GROUPS"
)

// Store reads cluster files from a directory.
//
// Parsed files are cached until their modification time changes.
// A Store is safe for concurrent use.
type Store struct {
	logger  *zap.Logger
	dirPath string
	lock    sync.RWMutex
	caching *atomic.Bool
	cache   cache.Cache[string, *clusterFile]
	// generation moves whenever cached cluster data may have changed.
	generation atomic.Uint64
}

// StoreOption is an option for a new Store.
type StoreOption func(*Store)

// StoreWithCaching sets whether parsed files are cached.
//
// The default is to cache.
func StoreWithCaching(caching bool) StoreOption {
	return func(store *Store) {
		store.caching.Store(caching)
	}
}

// NewStore returns a new Store for the directory.
func NewStore(logger *zap.Logger, dirPath string, options ...StoreOption) *Store {
	store := &Store{
		logger:  logger.Named("rangeyaml"),
		dirPath: dirPath,
		caching: atomic.NewBool(true),
	}
	for _, option := range options {
		option(store)
	}
	return store
}

// Name implements rangeeval.Module.
func (s *Store) Name() string {
	return ModuleName
}

// Functions implements rangeeval.Module.
func (s *Store) Functions() map[string]rangeeval.Function {
	return map[string]rangeeval.Function{
		"cluster":     s.functionCluster,
		"clusters":    s.functionClusters,
		"get_cluster": s.functionGetCluster,
		"get_groups":  s.functionClusters,
		"has":         s.functionHas,
		"mem":         s.functionMem,
		"allclusters": s.functionAllClusters,
		"group":       s.functionGroup,
		"get_admin":   s.functionGetAdmin,
	}
}

// Dir returns the directory of cluster files.
func (s *Store) Dir() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.dirPath
}

// SetDir replaces the directory of cluster files and clears the cache.
func (s *Store) SetDir(dirPath string) {
	s.lock.Lock()
	s.dirPath = dirPath
	s.lock.Unlock()
	s.ClearCache()
}

// SetCaching sets whether parsed files are cached.
func (s *Store) SetCaching(caching bool) {
	s.caching.Store(caching)
}

// ClearCache drops all parsed files.
func (s *Store) ClearCache() {
	s.cache.Clear()
	s.generation.Inc()
}

// Invalidate drops the parsed file at the path.
func (s *Store) Invalidate(filePath string) {
	s.cache.Delete(filePath)
	s.generation.Inc()
}

// Generation returns a number that changes whenever cluster data may have
// changed since it was last read.
//
// Callers that cache expansions compare it to the generation they saw.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// CacheLen returns the number of cached files.
func (s *Store) CacheLen() int {
	return s.cache.Len()
}

// Section expands one section of a cluster.
//
// A missing cluster file is a NOCLUSTERDEF warning, a missing section is a
// NOCLUSTER warning, and a malformed file is a free-form warning. All of
// them yield an empty set.
func (s *Store) Section(ctx context.Context, request *rangeeval.Request, cluster string, section string) (*rangeset.Set, error) {
	file, err := s.clusterFile(ctx, request, cluster)
	if err != nil || file == nil {
		return rangeset.New(), err
	}
	expression, ok := file.sections[section]
	if !ok {
		request.WarnType(ctx, rangeeval.WarningNoCluster, cluster+":"+section)
		return rangeset.New(), nil
	}
	return request.Expand(ctx, expression)
}

// ClusterNames returns the names of all clusters in directory order.
func (s *Store) ClusterNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, FileExt) || entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(name, FileExt))
	}
	return names, nil
}

// clusterFile returns the parsed file of the cluster, or nil after a warning.
func (s *Store) clusterFile(ctx context.Context, request *rangeeval.Request, cluster string) (*clusterFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isValidClusterName(cluster) {
		request.WarnType(ctx, rangeeval.WarningNoClusterDef, cluster)
		return nil, nil
	}
	filePath := filepath.Join(s.Dir(), cluster+FileExt)
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			request.WarnType(ctx, rangeeval.WarningNoClusterDef, cluster)
			return nil, nil
		}
		request.Warn(ctx, "%s: %s not readable", cluster, filePath)
		return nil, nil
	}
	caching := s.caching.Load()
	if caching {
		if file, ok := s.cache.Get(filePath); ok {
			if file.modTime.Equal(fileInfo.ModTime()) && file.size == fileInfo.Size() {
				return s.checkMalformed(ctx, request, cluster, filePath, file), nil
			}
			s.generation.Inc()
		}
	}
	file, err := readClusterFile(filePath, fileInfo)
	if err != nil {
		if errors.Is(err, errMalformed) {
			s.logger.Debug("malformed", zap.String("path", filePath), zap.Error(err))
		} else {
			request.Warn(ctx, "%s: %s not readable", cluster, filePath)
			return nil, nil
		}
	}
	s.logger.Debug("load", zap.String("path", filePath), zap.Time("mod_time", fileInfo.ModTime()))
	if caching {
		s.cache.Put(filePath, file)
	}
	return s.checkMalformed(ctx, request, cluster, filePath, file), nil
}

func (s *Store) checkMalformed(ctx context.Context, request *rangeeval.Request, cluster string, filePath string, file *clusterFile) *clusterFile {
	if file.malformed {
		request.Warn(ctx, "%s: malformed cluster definition %s", cluster, filePath)
		return nil
	}
	return file
}

// clusterIndex maps each node of a CLUSTER section to the clusters containing it.
type clusterIndex map[string][]string

// buildClusterIndex expands the CLUSTER section of every cluster in parallel.
func (s *Store) buildClusterIndex(ctx context.Context, request *rangeeval.Request) (clusterIndex, error) {
	clusterNames, err := s.allClusters(ctx, request)
	if err != nil {
		return nil, err
	}
	// Files without a CLUSTER section, such as HOSTS, are expected.
	quietCtx := rangeeval.WithoutWarnings(ctx)
	nodeSets := make([]*rangeset.Set, len(clusterNames))
	jobs := make([]func(context.Context) error, len(clusterNames))
	for i, clusterName := range clusterNames {
		i, clusterName := i, clusterName
		jobs[i] = func(ctx context.Context) error {
			nodeSet, err := s.Section(ctx, request, clusterName, SectionCluster)
			if err != nil {
				return err
			}
			nodeSets[i] = nodeSet
			return nil
		}
	}
	if err := parallelize(quietCtx, jobs); err != nil {
		return nil, err
	}
	index := make(clusterIndex)
	for i, clusterName := range clusterNames {
		for _, node := range nodeSets[i].Names() {
			index[node] = append(index[node], clusterName)
		}
	}
	return index, nil
}

// allClusters returns ClusterNames, warning if the directory cannot be read.
func (s *Store) allClusters(ctx context.Context, request *rangeeval.Request) ([]string, error) {
	clusterNames, err := s.ClusterNames(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		request.Warn(ctx, "%s: can't opendir", s.Dir())
		return nil, nil
	}
	return clusterNames, nil
}

func isValidClusterName(cluster string) bool {
	return cluster != "" &&
		!strings.ContainsAny(cluster, "/\\") &&
		!strings.HasPrefix(cluster, ".")
}

type clusterFile struct {
	modTime   time.Time
	size      int64
	sections  map[string]string
	malformed bool
}
