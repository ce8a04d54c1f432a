package mem

import "container/list"

type msgDone struct {
	msg  *Message
	done chan struct{}
}

// maxSizeEnforcer will delete the oldest message until the entire mail store is equal to or less
// than maxSize bytes.  Scheduled messages count toward the total like any other.
func (s *Store) maxSizeEnforcer(maxSize int64) {
	all := &list.List{}
	elems := make(map[*Message]*list.Element)
	curSize := int64(0)
	for {
		select {
		case md, ok := <-s.incoming:
			if !ok {
				return
			}
			m := md.msg
			elems[m] = all.PushBack(m)
			curSize += m.Size()
			for curSize > maxSize && all.Len() > 0 {
				// Remove oldest message.
				el := all.Front()
				all.Remove(el)
				old := el.Value.(*Message)
				delete(elems, old)
				curSize -= old.Size()
				s.removeMessage(old.mailbox, old.id)
			}
			close(md.done)
		case md, ok := <-s.remove:
			if !ok {
				return
			}
			m := md.msg
			if el, ok := elems[m]; ok {
				all.Remove(el)
				delete(elems, m)
				curSize -= m.Size()
			}
			close(md.done)
		}
	}
}

// enforcerDeliver sends delivery to enforcer if configured, and waits for completion.
func (s *Store) enforcerDeliver(m *Message) {
	s.enforcerSend(s.incoming, m)
}

// enforcerRemove sends removal to enforcer if configured, and waits for completion.
func (s *Store) enforcerRemove(m *Message) {
	s.enforcerSend(s.remove, m)
}

func (s *Store) enforcerSend(ch chan *msgDone, m *Message) {
	if ch == nil {
		return
	}
	md := &msgDone{
		msg:  m,
		done: make(chan struct{}),
	}
	ch <- md
	<-md.done
}
