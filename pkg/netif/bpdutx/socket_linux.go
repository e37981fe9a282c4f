//go:build linux
// +build linux

package bpdutx

import (
	"fmt"
	"net"
	"sync"
	"unsafe"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/mstpgo/mstpd/pkg/netif/iobuf"
)

// ethPAll802_2 is ETH_P_802_2 in network byte order, the protocol that
// delivers length-framed (LLC) Ethernet to an AF_PACKET socket.
const ethP802_2 = 0x0004

type linuxSocket struct {
	fd      int
	ifindex int
	srcMAC  [6]byte
	rx      RxFunc

	mu     sync.Mutex
	closed bool
	txbuf  *iobuf.Buffer // guarded by mu; the socket is bound, so Write needs no sockaddr
}

func openPlatform(ifindex int, srcMAC [6]byte, rx RxFunc) (PortSocket, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(htons(ethP802_2)))
	if err != nil {
		return nil, fmt.Errorf("packet socket: %w", err)
	}
	s := &linuxSocket{fd: fd, ifindex: ifindex, srcMAC: srcMAC, rx: rx, txbuf: iobuf.New(maxFrame)}

	if err := s.attachFilter(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	sll := &unix.SockaddrLinklayer{
		Protocol: htons(ethP802_2),
		Ifindex:  ifindex,
	}
	if err := unix.Bind(fd, sll); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind ifindex %d: %w", ifindex, err)
	}

	go s.recvLoop()
	return s, nil
}

// attachFilter installs a classic BPF program admitting only frames whose
// destination MAC is the bridge group address, so the daemon never wakes for
// ordinary traffic on the port.
func (s *linuxSocket) attachFilter() error {
	prog, err := bpf.Assemble([]bpf.Instruction{
		// load the first four bytes of the destination MAC
		bpf.LoadAbsolute{Off: 0, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0180c200, SkipFalse: 3},
		// and the remaining two
		bpf.LoadAbsolute{Off: 4, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0000, SkipFalse: 1},
		bpf.RetConstant{Val: maxFrame},
		bpf.RetConstant{Val: 0},
	})
	if err != nil {
		return fmt.Errorf("assemble BPDU filter: %w", err)
	}
	filters := make([]unix.SockFilter, len(prog))
	for i, ins := range prog {
		filters[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := unix.SockFprog{Len: uint16(len(filters)), Filter: &filters[0]}
	_, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT, uintptr(s.fd),
		uintptr(unix.SOL_SOCKET), uintptr(unix.SO_ATTACH_FILTER),
		uintptr(unsafe.Pointer(&fprog)), uintptr(unsafe.Sizeof(fprog)), 0)
	if errno != 0 {
		return fmt.Errorf("attach BPDU filter: %w", errno)
	}
	return nil
}

func (s *linuxSocket) recvLoop() {
	buf := make([]byte, maxFrame)
	for {
		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return // EBADF after Close, or the interface went away
		}
		if n < 17 { // 14-byte Ethernet header + 3-byte LLC minimum
			continue
		}
		frame := buf[:n]

		pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{
			Lazy: true, NoCopy: true,
		})
		ethLayer := pkt.Layer(layers.LayerTypeEthernet)
		if ethLayer == nil {
			continue
		}
		eth := ethLayer.(*layers.Ethernet)
		if [6]byte(eth.DstMAC[:6]) != BridgeGroupAddress {
			continue
		}
		var src [6]byte
		copy(src[:], eth.SrcMAC)

		// The BPDU payload (LLC included) starts after the 14-byte header;
		// the 802.3 length field bounds it below the capture length.
		payload := frame[14:]
		if eth.Length > 0 && int(eth.Length) < len(payload) {
			payload = payload[:eth.Length]
		}
		s.rx(s.ifindex, src, payload)
	}
}

func (s *linuxSocket) Send(payload []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr(s.srcMAC[:]),
		DstMAC:       net.HardwareAddr(BridgeGroupAddress[:]),
		EthernetType: layers.EthernetTypeLLC,
		Length:       uint16(len(payload)),
	}
	sb := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(sb, gopacket.SerializeOptions{},
		eth, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize BPDU frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSocketClosed
	}
	s.txbuf.Reset()
	if err := s.txbuf.Append(sb.Bytes()); err != nil {
		return fmt.Errorf("frame exceeds tx buffer: %w", err)
	}
	if err := s.txbuf.WriteToFD(s.fd); err != nil {
		return fmt.Errorf("send BPDU on ifindex %d: %w", s.ifindex, err)
	}
	return nil
}

func (s *linuxSocket) Ifindex() int { return s.ifindex }

func (s *linuxSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
