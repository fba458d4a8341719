package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-backend/pkg/fileutil"
)

var logger = log.With().Str("component", "ipc").Logger()

// 单次写客户端的超时，超时的客户端会被断开
const defaultWriteTimeout = 200 * time.Millisecond

// ErrAlreadyRunning 已有其他实例持有锁
var ErrAlreadyRunning = errors.New("another lyrics server instance is already running")

// Server 通过 unix socket 向客户端广播当前歌词，同时写入输出文件
type Server struct {
	socketPath   string
	outputFile   string
	lockFilePath string

	listener        net.Listener
	clientConns     map[net.Conn]struct{}
	clientConnsLock sync.Mutex
	lyrics          string
	lyricsLock      sync.Mutex
	lockFile        *os.File
	closed          bool
	writeTimeout    time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewServer outputFile 为空时不写文件
func NewServer(socketPath, outputFile string) *Server {
	return &Server{
		socketPath:   socketPath,
		outputFile:   outputFile,
		clientConns:  make(map[net.Conn]struct{}),
		lockFilePath: socketPath + ".lock",
		writeTimeout: defaultWriteTimeout,
	}
}

func (s *Server) write(conn net.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}

// Addr 监听的 socket 路径
func (s *Server) Addr() string {
	return s.socketPath
}

func (s *Server) checkAndCleanOldLock() {
	content, err := os.ReadFile(s.lockFilePath)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		logger.Warn().Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	if !isProcessRunning(pid) {
		logger.Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return
	}
	logger.Info().Int("existing_pid", pid).Msg("Another process is still running")
}

// isProcessRunning kill(pid, 0) 只检查进程是否存在
func isProcessRunning(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func (s *Server) acquireLock() error {
	s.checkAndCleanOldLock()

	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrAlreadyRunning
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	// 拿到锁之后再截断，避免清掉正在运行的实例写入的 PID
	err = file.Truncate(0)
	if err == nil {
		_, err = fmt.Fprintf(file, "%d\n", os.Getpid())
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	logger.Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile == nil {
		return
	}
	syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
	s.lockFile.Close()
	os.Remove(s.lockFilePath)
	logger.Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
	s.lockFile = nil
}

// Start 获取进程锁并开始监听，ctx 结束时自动关闭
func (s *Server) Start(ctx context.Context) error {
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	logger.Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	s.wg.Add(1)
	go s.acceptConnections()

	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	// 先发当前歌词再登记，保证新客户端看到的顺序正确
	s.lyricsLock.Lock()
	err := s.write(conn, []byte(s.lyrics))
	if err == nil {
		s.clientConnsLock.Lock()
		if s.closed {
			err = net.ErrClosed
		} else {
			s.clientConns[conn] = struct{}{}
		}
		s.clientConnsLock.Unlock()
	}
	s.lyricsLock.Unlock()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send initial lyrics")
		conn.Close()
		return
	}

	logger.Info().Msg("Client connected")

	// 客户端不发数据，读到 EOF 即断开
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}

	s.clientConnsLock.Lock()
	delete(s.clientConns, conn)
	s.clientConnsLock.Unlock()
	conn.Close()
	logger.Info().Msg("Client disconnected")
}

// Broadcast 发送歌词给所有客户端并写入输出文件
func (s *Server) Broadcast(lyrics string) {
	if s.outputFile != "" {
		if err := fileutil.WriteFileOverwrite(s.outputFile, []byte(lyrics+"\n"), 0644); err != nil {
			logger.Error().Err(err).Str("file", s.outputFile).Msg("Failed to write lyrics file")
		}
	}

	s.lyricsLock.Lock()
	defer s.lyricsLock.Unlock()
	s.lyrics = lyrics

	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()

	lyricsBytes := []byte(lyrics)
	for conn := range s.clientConns {
		if err := s.write(conn, lyricsBytes); err != nil {
			logger.Error().Err(err).Msg("Failed to write to client, removing")
			conn.Close()
			delete(s.clientConns, conn)
		}
	}
}

// Current 最近一次广播的内容
func (s *Server) Current() string {
	s.lyricsLock.Lock()
	defer s.lyricsLock.Unlock()
	return s.lyrics
}

// Close 关闭监听和所有连接，释放进程锁
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.listener != nil {
			s.listener.Close()
		}

		s.clientConnsLock.Lock()
		s.closed = true
		for conn := range s.clientConns {
			conn.Close()
			delete(s.clientConns, conn)
		}
		s.clientConnsLock.Unlock()

		s.wg.Wait()
		os.Remove(s.socketPath)
		s.releaseLock()
	})
}
